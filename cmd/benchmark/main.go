package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"strconv"
	"time"

	"splitdb/pkg/common"
	"splitdb/pkg/core/bptree"
	"splitdb/pkg/core/exhash"
)

func main() {
	nKeys := flag.Int("n", 100000, "Number of keys per run")
	order := flag.Int("order", 32, "B+ tree order")
	capacity := flag.Int("capacity", 32, "Hash bucket capacity")
	seed := flag.Int64("seed", 1, "RNG seed")
	flag.Parse()

	fmt.Printf("splitdb Index Benchmark (N=%d)\n", *nKeys)
	fmt.Printf("  order=%d  bucket_capacity=%d\n", *order, *capacity)
	fmt.Println("---------------------------------------------------")

	rng := rand.New(rand.NewSource(*seed))
	keys := make([]common.KeyType, *nKeys)
	for i, k := range rng.Perm(*nKeys) {
		keys[i] = common.KeyType(k)
	}

	fmt.Println(">> B+ Tree (ordered index)...")
	treeInsert, treeSearch := runTreeBenchmark(keys, *order)
	report("insert", treeInsert, *nKeys)
	report("search", treeSearch, *nKeys)

	fmt.Println(">> Extendible Hash (unordered index, in-memory store)...")
	hashInsert, hashSearch := runHashBenchmark(keys, *capacity)
	report("insert", hashInsert, *nKeys)
	report("search", hashSearch, *nKeys)

	fmt.Println("---------------------------------------------------")
	fmt.Printf("Search speedup hash vs tree: %.2fx\n",
		treeSearch.Seconds()/hashSearch.Seconds())
}

func report(op string, d time.Duration, n int) {
	fmt.Printf("   %-6s  %10v | %.0f ops/s\n", op, d, float64(n)/d.Seconds())
}

func runTreeBenchmark(keys []common.KeyType, order int) (insert, search time.Duration) {
	tree := bptree.New(order)

	start := time.Now()
	for _, k := range keys {
		tree.Insert(k, []byte(strconv.FormatInt(int64(k), 10)))
	}
	insert = time.Since(start)

	start = time.Now()
	for _, k := range keys {
		if _, ok := tree.Search(k); !ok {
			log.Fatalf("tree lost key %d", k)
		}
	}
	search = time.Since(start)
	return insert, search
}

func runHashBenchmark(keys []common.KeyType, capacity int) (insert, search time.Duration) {
	table, err := exhash.New(nil, exhash.Options{BucketCapacity: capacity})
	if err != nil {
		log.Fatalf("init hash table: %v", err)
	}

	start := time.Now()
	for _, k := range keys {
		if err := table.Insert(k, []byte(strconv.FormatInt(int64(k), 10))); err != nil {
			log.Fatalf("hash insert %d: %v", k, err)
		}
	}
	insert = time.Since(start)

	start = time.Now()
	for _, k := range keys {
		if _, ok, err := table.Search(k); err != nil || !ok {
			log.Fatalf("hash lost key %d (err=%v)", k, err)
		}
	}
	search = time.Since(start)
	return insert, search
}
