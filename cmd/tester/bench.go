// Copyright 2023-2024 daviszhen
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"encoding/binary"
	"fmt"
	"math/rand"
	"time"
	"unsafe"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/daviszhen/filesort/pkg/compute"
	"github.com/daviszhen/filesort/pkg/plan"
	"github.com/daviszhen/filesort/pkg/util"
)

const benchRefLength = 8

func runSortBench(cfg *util.Config) error {
	workers := max(cfg.Bench.Workers, 1)
	paramTmpl := benchParam(cfg)

	var g errgroup.Group
	for w := 0; w < workers; w++ {
		wid := w
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = util.ConvertPanicError(r)
				}
			}()
			return runOneBench(cfg, wid, paramTmpl.Clone())
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if cfg.Bench.PrintMemory {
		printMemMetrics()
	}
	return nil
}

func benchMaxRecordLen(cfg *util.Config) int {
	needed := cfg.Bench.KeyLen + benchRefLength
	return max(cfg.SortMemory.MaxRecordLen, needed)
}

func benchParam(cfg *util.Config) *compute.SortParam {
	if cfg.Bench.VarlenKeys {
		fields := []compute.SortField{
			compute.NewSortField(true, true, 0),
		}
		return compute.NewVarlenSortParam(
			benchMaxRecordLen(cfg),
			cfg.Bench.StableSort,
			true,
			fields)
	}
	return compute.NewSortParam(
		cfg.Bench.KeyLen+benchRefLength,
		cfg.Bench.StableSort,
		false,
		benchRefLength)
}

func runOneBench(cfg *util.Config, wid int, param *compute.SortParam) error {
	maxRecordLen := benchMaxRecordLen(cfg)
	buf := compute.NewFilesortBuffer(maxRecordLen, cfg.SortMemory.BudgetBytes)
	defer buf.Free()

	rng := rand.New(rand.NewSource(int64(wid) + 1))
	rows := cfg.Bench.Rows

	if cfg.Bench.Preallocate {
		if err := buf.Preallocate(rows); err != nil {
			return err
		}
		for i := 0; i < rows; i++ {
			fillRecord(cfg, param, buf.SortedRecord(i), uint64(i), rng)
		}
	} else {
		for i := 0; i < rows; i++ {
			if buf.SpaceLeftInCurrentBlock() < maxRecordLen {
				if err := buf.Grow(1); err != nil {
					return err
				}
			}
			ptr := buf.GetNextRecordPointer()
			used := fillRecord(cfg, param, ptr, uint64(i), rng)
			buf.CommitUsedSpace(used)
		}
	}

	start := time.Now()
	buf.SortBuffer(param, buf.RecordCount())
	util.Info("sort bench finished",
		zap.Int("worker", wid),
		zap.Int("rows", buf.RecordCount()),
		zap.Duration("elapsed", time.Since(start)),
		zap.String("algorithm", param.SortAlgorithm().String()),
		zap.Int("peakMemory", buf.PeakMemoryUsed()))
	return nil
}

// fillRecord writes one random record into the slot and returns the bytes
// used. Fixed records are key bytes plus a row locator; varlen records go
// through the encoder.
func fillRecord(cfg *util.Config, param *compute.SortParam, ptr unsafe.Pointer, rowId uint64, rng *rand.Rand) int {
	if param.UsingVarlenKeys() {
		//leave room for the record header and length prefix
		keyLenCap := benchMaxRecordLen(cfg) - 17
		keyLen := 1 + rng.Intn(max(min(cfg.Bench.KeyLen, keyLenCap), 1))
		key := make([]byte, keyLen)
		rng.Read(key)
		return param.EncodeVarlenRecord(ptr, [][]byte{key})
	}

	keyLen := cfg.Bench.KeyLen
	slot := util.PointerToSlice[byte](ptr, keyLen+benchRefLength)
	rng.Read(slot[:keyLen])
	binary.BigEndian.PutUint64(slot[keyLen:], rowId)
	return keyLen + benchRefLength
}

func printMemMetrics() {
	registry := prometheus.NewRegistry()
	registry.MustRegister(util.NewMemCollector())
	mfs, err := registry.Gather()
	if err != nil {
		util.Error("gather memory metrics failed", zap.Error(err))
		return
	}
	for _, mf := range mfs {
		for _, m := range mf.GetMetric() {
			tag := ""
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "tag" {
					tag = lp.GetValue()
				}
			}
			val := 0.0
			if m.GetGauge() != nil {
				val = m.GetGauge().GetValue()
			} else if m.GetCounter() != nil {
				val = m.GetCounter().GetValue()
			}
			util.Info("memory metric",
				zap.String("name", mf.GetName()),
				zap.String("tag", tag),
				zap.Float64("bytes", val))
		}
	}
}

func runEstimate(cfg *util.Config) error {
	cm := plan.NewCostModelFromConfig(cfg)
	rows := cfg.Estimate.Rows
	keysPerBuffer := cfg.Estimate.KeysPerBuffer
	if keysPerBuffer == 0 {
		return fmt.Errorf("keys_per_buffer must be at least 1")
	}
	cost := plan.EstimateMergeCost(rows, keysPerBuffer, cfg.Estimate.ElemSize, cm)
	util.Info("merge cost estimate",
		zap.Uint64("rows", rows),
		zap.Uint64("keysPerBuffer", keysPerBuffer),
		zap.Int("elemSize", cfg.Estimate.ElemSize),
		zap.Float64("cost", cost))
	if cfg.Estimate.PrintPasses {
		fmt.Println(plan.ExplainMergeCost(rows, keysPerBuffer, cfg.Estimate.ElemSize, cm))
	}
	return nil
}
