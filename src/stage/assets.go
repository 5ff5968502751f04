package stage

import (
	"fmt"
	"image"
	"log"
	"os"
	"path/filepath"

	_ "image/png"
)

// Asset file names relative to the assets directory.
const (
	AssetBase          = "cat.PNG"
	AssetTail          = "tail/tail.PNG"
	AssetDefaultTop    = "default_clothes/default_top.PNG"
	AssetDefaultBottom = "default_clothes/default_pants.PNG"
)

// Assets are the static stage layers. Nil fields are skipped when rendering.
type Assets struct {
	Base          image.Image
	Tail          image.Image
	DefaultTop    image.Image
	DefaultBottom image.Image
}

// LoadAssets reads the static layers from dir. Missing or unreadable files
// are logged and left nil.
func LoadAssets(dir string) Assets {
	var a Assets
	if dir == "" {
		return a
	}
	a.Base = loadAsset(dir, AssetBase)
	a.Tail = loadAsset(dir, AssetTail)
	a.DefaultTop = loadAsset(dir, AssetDefaultTop)
	a.DefaultBottom = loadAsset(dir, AssetDefaultBottom)
	return a
}

func loadAsset(dir, name string) image.Image {
	img, err := decodeFile(filepath.Join(dir, filepath.FromSlash(name)))
	if err != nil {
		log.Printf("Stage: asset %s unavailable: %v", name, err)
		return nil
	}
	return img
}

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}
