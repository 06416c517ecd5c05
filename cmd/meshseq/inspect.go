package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
	"github.com/qmuntal/gltf"

	"github.com/Faultbox/meshseq/internal/gltfbuild"
)

func cmdInspect(args []string) error {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	positional, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(positional) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: meshseq inspect <file.glb|file.gltf>")
		return errUsage
	}

	path := positional[0]
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	doc, err := gltfbuild.ReadDocument(data, os.DirFS(filepath.Dir(path)))
	if err != nil {
		return err
	}
	if err := gltfbuild.Check(doc); err != nil {
		return err
	}

	printSummary(path, data, doc)
	return nil
}

func printSummary(path string, data []byte, doc *gltf.Document) {
	var prims, targets, sparse int
	for _, m := range doc.Meshes {
		prims += len(m.Primitives)
		for _, p := range m.Primitives {
			targets += len(p.Targets)
		}
	}
	for _, a := range doc.Accessors {
		if a.Sparse != nil {
			sparse++
		}
	}
	var samplers, channels int
	var duration float32
	for _, a := range doc.Animations {
		samplers += len(a.Samplers)
		channels += len(a.Channels)
		for _, s := range a.Samplers {
			if in := doc.Accessors[s.Input]; len(in.Max) > 0 && in.Max[0] > duration {
				duration = in.Max[0]
			}
		}
	}
	var bufBytes uint32
	for _, b := range doc.Buffers {
		bufBytes += b.ByteLength
	}

	fmt.Printf("File:       %s\n", path)
	fmt.Printf("Size:       %d bytes\n", len(data))
	fmt.Printf("Hash:       %016x\n", xxhash.Sum64(data))
	fmt.Printf("Generator:  %s (glTF %s)\n", doc.Asset.Generator, doc.Asset.Version)
	fmt.Printf("Scenes:     %d\n", len(doc.Scenes))
	fmt.Printf("Nodes:      %d\n", len(doc.Nodes))
	fmt.Printf("Meshes:     %d (%d primitives, %d morph targets)\n", len(doc.Meshes), prims, targets)
	fmt.Printf("Accessors:  %d (%d sparse)\n", len(doc.Accessors), sparse)
	fmt.Printf("Materials:  %d\n", len(doc.Materials))
	fmt.Printf("Textures:   %d (%d images)\n", len(doc.Textures), len(doc.Images))
	fmt.Printf("Animations: %d (%d samplers, %d channels, %.3fs)\n", len(doc.Animations), samplers, channels, duration)
	fmt.Printf("Buffers:    %d (%d bytes)\n", len(doc.Buffers), bufBytes)
}
