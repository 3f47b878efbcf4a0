package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"splitdb/pkg/common"
	"splitdb/pkg/config"
	"splitdb/pkg/core/exhash"
	"splitdb/pkg/loader"
	"splitdb/pkg/log"
	"splitdb/pkg/metrics"
	"splitdb/pkg/monitor"
	"splitdb/pkg/storage"
)

const Prompt = "exhash> "

func main() {
	dataPath := flag.String("data", "", "sqlite file for bucket storage (overrides config)")
	configPath := flag.String("config", "", "path to yaml config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}
	if *dataPath != "" {
		cfg.Storage.Path = *dataPath
	}

	logger, err := log.Setup(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	metrics.Init()

	var store storage.BucketStore
	if cfg.Storage.Path != "" {
		store, err = storage.NewSQLiteStore(cfg.Storage.Path)
		if err != nil {
			logger.Fatal("open bucket store", zap.Error(err))
		}
		fmt.Printf("Buckets persisted to %s\n", cfg.Storage.Path)
	} else {
		store = storage.NewMemStore()
		fmt.Println("Running in memory (use -data to persist buckets)")
	}

	table, err := exhash.New(store, exhash.Options{
		BucketCapacity: cfg.Hash.BucketCapacity,
		GlobalDepth:    cfg.Hash.GlobalDepth,
		MaxLocalDepth:  cfg.Hash.MaxLocalDepth,
		MaxResident:    cfg.Hash.MaxResident,
		Logger:         logger,
	})
	if err != nil {
		logger.Fatal("init hash table", zap.Error(err))
	}
	defer table.Close()

	stats := monitor.NewWorkloadStats()

	fmt.Println("Extendible Hash CLI. Type 'help' for commands.")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(Prompt)
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		parts := strings.Fields(line)
		switch strings.ToLower(parts[0]) {
		case "insert", "put":
			handleInsert(table, stats, parts)
		case "lookup", "get":
			handleLookup(table, stats, parts)
		case "load":
			handleLoad(table, stats, parts)
		case "stats":
			printStats(table, stats)
		case "dump":
			handleDump(table)
		case "help":
			printHelp()
		case "exit", "quit":
			fmt.Println("Bye!")
			return
		default:
			fmt.Printf("Unknown command: '%s'. Type 'help'.\n", parts[0])
		}
	}
}

func parseKey(s string) (common.KeyType, bool) {
	k, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		fmt.Println("Error: Key must be an integer")
		return 0, false
	}
	return common.KeyType(k), true
}

func handleInsert(table *exhash.Table, stats *monitor.WorkloadStats, parts []string) {
	if len(parts) < 3 {
		fmt.Println("Usage: insert <key_int> <value_string>")
		return
	}
	key, ok := parseKey(parts[1])
	if !ok {
		return
	}
	value := strings.Join(parts[2:], " ")

	splitsBefore := table.Splits()
	err := table.Insert(key, []byte(value))
	stats.RecordInsert()

	if table.Splits() > splitsBefore {
		fmt.Println("Bucket split triggered!")
	}
	switch {
	case errors.Is(err, exhash.ErrDuplicateKey):
		fmt.Printf("Key %d already exists\n", key)
	case errors.Is(err, exhash.ErrIndexExhausted):
		fmt.Printf("Cannot insert %d: local depth ceiling reached\n", key)
	case err != nil:
		fmt.Printf("Error: %v\n", err)
	default:
		fmt.Printf("Inserted key %d. Number of buckets: %d\n", key, table.Buckets())
	}
}

func handleLookup(table *exhash.Table, stats *monitor.WorkloadStats, parts []string) {
	if len(parts) < 2 {
		fmt.Println("Usage: lookup <key_int>")
		return
	}
	key, ok := parseKey(parts[1])
	if !ok {
		return
	}

	val, found, err := table.Search(key)
	stats.RecordSearch()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	if !found {
		fmt.Printf("Key %d not found\n", key)
		return
	}
	stats.RecordHit()
	fmt.Printf("\"%s\"\n", string(val))
}

func handleLoad(table *exhash.Table, stats *monitor.WorkloadStats, parts []string) {
	if len(parts) < 2 {
		fmt.Println("Usage: load <file>")
		return
	}

	splitsBefore := table.Splits()
	count, err := loader.ReadFile(parts[1],
		func(k common.KeyType) error {
			err := table.Insert(k, []byte(strconv.FormatInt(int64(k), 10)))
			stats.RecordInsert()
			if errors.Is(err, exhash.ErrDuplicateKey) {
				fmt.Printf("Skipping duplicate key %d\n", k)
				return nil
			}
			return err
		},
		func(line int, text string, err error) {
			fmt.Printf("Skipping invalid entry at line %d: %s\n", line, text)
		})
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	if splits := table.Splits() - splitsBefore; splits > 0 {
		fmt.Printf("Bucket split triggered! (%d splits during load)\n", splits)
	}
	fmt.Printf("Processed %d keys. Number of buckets: %d\n", count, table.Buckets())
}

func printStats(table *exhash.Table, stats *monitor.WorkloadStats) {
	inserts, searches, _ := stats.Snapshot()
	fmt.Printf("Global depth:    %d\n", table.GlobalDepth())
	fmt.Printf("Directory slots: %d\n", table.DirSize())
	fmt.Printf("Buckets:         %d\n", table.Buckets())
	fmt.Printf("Entries:         %d\n", table.Len())
	fmt.Printf("Splits:          %d\n", table.Splits())
	fmt.Printf("Doublings:       %d\n", table.Doublings())
	fmt.Printf("Session:         %d inserts, %d lookups (%.0f%% hits)\n",
		inserts, searches, stats.HitRate()*100)
}

func handleDump(table *exhash.Table) {
	out, err := table.Dump()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Print(out)
}

func printHelp() {
	fmt.Println(`
Commands:
  insert <key> <value>   Insert a key/value pair
  lookup <key>           Retrieve a value
  load <file>            Bulk insert integers, one per line
  stats                  Show table statistics
  dump                   Show directory and bucket contents
  exit                   Exit CLI
	`)
}
