/*
 * Copyright (c) 2026 QAIL Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

/*
qail-bench - QAIL pipeline batch benchmark

Drives the uniform-batch fast path: every batch shares one prepared
statement, each execution varying only its LIMIT parameter. Workers check
connections out of the pool, pipeline a full batch behind a single Sync,
and consume the results.

Usage:

	qail-bench -queries 1000000 -workers 10 -batch 100
	PG_HOST=127.0.0.1 PG_USER=postgres qail-bench

Expects a "harbors" table with (id, name) columns; see -table.
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	qail "github.com/qail-lang/qail-go"
	"github.com/qail-lang/qail-go/pg"
)

func main() {
	dsn := flag.String("dsn", "postgres://", "PostgreSQL DSN")
	table := flag.String("table", "harbors", "Benchmark table with (id, name)")
	totalQueries := flag.Int("queries", 1_000_000, "Total executions")
	workers := flag.Int("workers", 10, "Concurrent workers")
	batchSize := flag.Int("batch", 100, "Executions per pipeline batch")
	flag.Parse()

	ctx := context.Background()
	driver, err := pg.Connect(ctx, *dsn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect failed: %v\n", err)
		os.Exit(1)
	}
	defer driver.Close()

	fmt.Println("QAIL PIPELINE BENCHMARK")
	fmt.Println("=======================")
	fmt.Printf("Total queries:  %12d\n", *totalQueries)
	fmt.Printf("Workers:        %12d\n", *workers)
	fmt.Printf("Batch size:     %12d\n", *batchSize)
	fmt.Println()

	batchesPerWorker := *totalQueries / *workers / *batchSize
	var counter atomic.Int64
	var wg sync.WaitGroup

	start := time.Now()
	for w := 0; w < *workers; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for b := 0; b < batchesPerWorker; b++ {
				cmds := make([]*qail.Cmd, *batchSize)
				for i := range cmds {
					limit := int64(i%10 + 1)
					cmds[i] = qail.Get(*table).Columns("id", "name").Limit(limit)
				}
				if _, err := driver.Batch(ctx, cmds); err != nil {
					fmt.Fprintf(os.Stderr, "worker %d: batch failed: %v\n", workerID, err)
					return
				}
				counter.Add(int64(*batchSize))
			}
		}(w)
	}

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				n := counter.Load()
				rate := float64(n) / time.Since(start).Seconds()
				fmt.Printf("  %12d queries  %12.0f ops/sec\n", n, rate)
			}
		}
	}()

	wg.Wait()
	close(done)

	elapsed := time.Since(start)
	n := counter.Load()
	fmt.Println()
	fmt.Printf("Completed %d queries in %s (%.0f ops/sec)\n",
		n, elapsed.Round(time.Millisecond), float64(n)/elapsed.Seconds())
}
