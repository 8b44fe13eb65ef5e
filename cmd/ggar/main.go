// Command ggar composes product designs and hands them off to AR viewers.
//
// Usage:
//
//	ggar serve --config ggar.yaml
//	ggar compose design.json -o texture.png
//	ggar handoff design.json -o qr.png
//	ggar decode "https://shop.example/ar-view?designId=design_123&t=456"
//	ggar sweep
package main

func main() {
	Execute()
}
