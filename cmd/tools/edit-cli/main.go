package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/annel0/voxel-engine/internal/config"
	"github.com/annel0/voxel-engine/internal/storage"
	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/annel0/voxel-engine/internal/world/block"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to YAML config (default: $VOXEL_CONFIG)")
		backend    = flag.String("backend", "", "override storage backend: badger, redis")
		dataPath   = flag.String("data", "", "override badger data directory")
		command    = flag.String("cmd", "list", "Command: list, show, set, clear")
		chunk      = flag.String("chunk", "", "chunk coordinate x,y,z (show, clear)")
		pos        = flag.String("pos", "", "voxel coordinate x,y,z (set)")
		blockName  = flag.String("block", "", "block name (set)")
		timeout    = flag.Duration("timeout", 10*time.Second, "operation timeout")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}
	opts := cfg.StorageOptions()
	if *backend != "" {
		opts.Backend = *backend
	}
	if *dataPath != "" {
		opts.Path = *dataPath
	}
	if opts.Backend == "memory" {
		log.Fatalf("❌ memory backend keeps nothing between runs, use -backend badger or redis")
	}

	store, err := storage.Open(opts)
	if err != nil {
		log.Fatalf("❌ Failed to open storage: %v", err)
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	switch *command {
	case "list":
		err = listChunks(ctx, store)
	case "show":
		err = withCoord(*chunk, func(c vec.Vec3) error { return showChunk(ctx, store, c) })
	case "set":
		err = withCoord(*pos, func(p vec.Vec3) error { return setBlock(ctx, store, p, *blockName) })
	case "clear":
		err = withCoord(*chunk, func(c vec.Vec3) error { return store.DeleteChunk(ctx, c) })
	default:
		fmt.Printf("❌ Unknown command: %s\n", *command)
		fmt.Println("Available commands: list, show, set, clear")
		os.Exit(1)
	}
	if err != nil {
		log.Fatalf("❌ %s failed: %v", *command, err)
	}
}

// listChunks выводит чанки с правками и число правок в каждом
func listChunks(ctx context.Context, store storage.EditStore) error {
	coords, err := store.Chunks(ctx)
	if err != nil {
		return err
	}
	sort.Slice(coords, func(i, j int) bool { return coords[i].Less(coords[j]) })

	total := 0
	for _, c := range coords {
		d, err := store.LoadChunk(ctx, c)
		if err != nil {
			return err
		}
		fmt.Printf("%4d %4d %4d  %d edits\n", c.X, c.Y, c.Z, d.Len())
		total += d.Len()
	}
	fmt.Printf("\n📊 Chunks: %d, edits: %d\n", len(coords), total)
	return nil
}

// showChunk выводит правки чанка
func showChunk(ctx context.Context, store storage.EditStore, c vec.Vec3) error {
	d, err := store.LoadChunk(ctx, c)
	if err != nil {
		return err
	}
	table := block.DefaultTable()

	keys := make([]string, 0, len(d.Blocks))
	for k := range d.Blocks {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		id := d.Blocks[k]
		fmt.Printf("%-10s %3d %s\n", k, id, table.Get(id).Name)
	}
	return nil
}

// setBlock записывает правку напрямую, без запущенного движка
func setBlock(ctx context.Context, store storage.EditStore, p vec.Vec3, name string) error {
	id, ok := block.DefaultTable().ByName(name)
	if !ok {
		return fmt.Errorf("unknown block %q", name)
	}
	return store.SaveEdit(ctx, p, id)
}

func withCoord(s string, fn func(vec.Vec3) error) error {
	c, err := parseCoord(s)
	if err != nil {
		return err
	}
	return fn(c)
}

// parseCoord разбирает "x,y,z"
func parseCoord(s string) (vec.Vec3, error) {
	var c vec.Vec3
	if _, err := fmt.Sscanf(strings.ReplaceAll(s, " ", ""), "%d,%d,%d", &c.X, &c.Y, &c.Z); err != nil {
		return c, fmt.Errorf("invalid coordinate %q: %v", s, err)
	}
	return c, nil
}
