package main

import "crtcbuild/internal/crtcbuild"

func main() {
	crtcbuild.Main()
}
