package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"go.uber.org/zap"

	"splitdb/pkg/common"
	"splitdb/pkg/config"
	"splitdb/pkg/core/bptree"
	"splitdb/pkg/loader"
	"splitdb/pkg/log"
	"splitdb/pkg/metrics"
)

func main() {
	order := flag.Int("order", 0, "max keys per node (overrides config)")
	configPath := flag.String("config", "", "path to yaml config")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: bptree [-order N] [-config FILE] <keys-file>")
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}
	if *order > 0 {
		cfg.BPTree.Order = *order
	}

	logger, err := log.Setup(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	metrics.Init()

	tree := bptree.New(cfg.BPTree.Order)

	path := flag.Arg(0)
	count, err := loader.ReadFile(path,
		func(k common.KeyType) error {
			tree.Insert(k, []byte(strconv.FormatInt(int64(k), 10)))
			fmt.Printf("Inserted: %d\n", k)
			return nil
		},
		func(line int, text string, err error) {
			logger.Warn("skipping invalid line",
				zap.Int("line", line),
				zap.String("text", text),
				zap.Error(err))
		})
	if err != nil {
		logger.Error("load failed", zap.String("file", path), zap.Error(err))
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(tree.Dump())
	logger.Info("load complete",
		zap.String("file", path),
		zap.Int("keys", count),
		zap.Int("order", tree.Order()),
		zap.Int("height", tree.Height()),
		zap.Int("leaves", tree.Leaves()),
	)
}
