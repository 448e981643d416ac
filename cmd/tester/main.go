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
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.uber.org/zap"

	"github.com/daviszhen/filesort/pkg/util"
)

func init() {
	cobra.OnInitialize(loadConfig)
	initSortBenchCmd()
	initEstimateCmd()
}

var testerCfg = &util.Config{}

///root cmd

var info = "tester"
var RootCmd = &cobra.Command{
	Use:          "tester",
	Short:        info,
	Long:         info,
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("use tester --help or -h")
	},
}

func initSortMemoryOptions() {
	testerCfg.SortMemory.BudgetBytes = viper.GetInt("sortMemory.budgetBytes")
	testerCfg.SortMemory.MaxRecordLen = viper.GetInt("sortMemory.maxRecordLen")
}

func initCostOptions() {
	testerCfg.Cost.IoBlockReadCost = viper.GetFloat64("cost.ioBlockReadCost")
	testerCfg.Cost.KeyCompareCost = viper.GetFloat64("cost.keyCompareCost")
}

//sortbench cmd

var sortBenchInfo = "fill a sort buffer and sort it in memory"
var sortBenchCmd = &cobra.Command{
	Use:   "sortbench",
	Short: sortBenchInfo,
	Long:  sortBenchInfo,
	RunE: func(cmd *cobra.Command, args []string) error {
		initSortBenchCfg()
		return runSortBench(testerCfg)
	},
}

func initSortBenchCfg() {
	initSortMemoryOptions()
	testerCfg.Bench.Rows = viper.GetInt("bench.rows")
	testerCfg.Bench.Workers = viper.GetInt("bench.workers")
	testerCfg.Bench.Preallocate = viper.GetBool("bench.preallocate")
	testerCfg.Bench.VarlenKeys = viper.GetBool("bench.varlenKeys")
	testerCfg.Bench.KeyLen = viper.GetInt("bench.keyLen")
	testerCfg.Bench.StableSort = viper.GetBool("bench.stableSort")
	testerCfg.Bench.PrintMemory = viper.GetBool("bench.printMemory")
}

func initSortBenchCmd() {
	RootCmd.AddCommand(sortBenchCmd)
	sortBenchCmd.Flags().IntVar(&testerCfg.Bench.Rows, "rows", 100000, "rows to sort")
	sortBenchCmd.Flags().IntVar(&testerCfg.Bench.Workers, "workers", 1, "independent sort buffers to run in parallel")
	sortBenchCmd.Flags().BoolVar(&testerCfg.Bench.Preallocate, "preallocate", false, "preallocate the buffer instead of growing")
	sortBenchCmd.Flags().BoolVar(&testerCfg.Bench.VarlenKeys, "varlen_keys", false, "use variable-length keys")
	sortBenchCmd.Flags().IntVar(&testerCfg.Bench.KeyLen, "key_len", 16, "sort key length in bytes")
	sortBenchCmd.Flags().BoolVar(&testerCfg.Bench.StableSort, "stable_sort", false, "demand a stable sort")
	sortBenchCmd.Flags().BoolVar(&testerCfg.Bench.PrintMemory, "print_memory", true, "print tagged memory metrics afterwards")

	viper.BindPFlag("bench.rows", sortBenchCmd.Flags().Lookup("rows"))
	viper.BindPFlag("bench.workers", sortBenchCmd.Flags().Lookup("workers"))
	viper.BindPFlag("bench.preallocate", sortBenchCmd.Flags().Lookup("preallocate"))
	viper.BindPFlag("bench.varlenKeys", sortBenchCmd.Flags().Lookup("varlen_keys"))
	viper.BindPFlag("bench.keyLen", sortBenchCmd.Flags().Lookup("key_len"))
	viper.BindPFlag("bench.stableSort", sortBenchCmd.Flags().Lookup("stable_sort"))
	viper.BindPFlag("bench.printMemory", sortBenchCmd.Flags().Lookup("print_memory"))
}

//estimate cmd

var estimateInfo = "estimate the cost of a multi-pass merge sort"
var estimateCmd = &cobra.Command{
	Use:   "estimate",
	Short: estimateInfo,
	Long:  estimateInfo,
	RunE: func(cmd *cobra.Command, args []string) error {
		initEstimateCfg()
		return runEstimate(testerCfg)
	},
}

func initEstimateCfg() {
	initCostOptions()
	testerCfg.Estimate.Rows = viper.GetUint64("estimate.rows")
	testerCfg.Estimate.KeysPerBuffer = viper.GetUint64("estimate.keysPerBuffer")
	testerCfg.Estimate.ElemSize = viper.GetInt("estimate.elemSize")
	testerCfg.Estimate.PrintPasses = viper.GetBool("estimate.printPasses")
}

func initEstimateCmd() {
	RootCmd.AddCommand(estimateCmd)
	estimateCmd.Flags().Uint64Var(&testerCfg.Estimate.Rows, "rows", 10000000, "total rows to sort")
	estimateCmd.Flags().Uint64Var(&testerCfg.Estimate.KeysPerBuffer, "keys_per_buffer", 100000, "keys per in-memory buffer")
	estimateCmd.Flags().IntVar(&testerCfg.Estimate.ElemSize, "elem_size", 24, "element size in bytes")
	estimateCmd.Flags().BoolVar(&testerCfg.Estimate.PrintPasses, "print_passes", true, "print the simulated merge passes")

	viper.BindPFlag("estimate.rows", estimateCmd.Flags().Lookup("rows"))
	viper.BindPFlag("estimate.keysPerBuffer", estimateCmd.Flags().Lookup("keys_per_buffer"))
	viper.BindPFlag("estimate.elemSize", estimateCmd.Flags().Lookup("elem_size"))
	viper.BindPFlag("estimate.printPasses", estimateCmd.Flags().Lookup("print_passes"))
}

var defCfgFilePaths = []string{".", "etc/filesort"}
var cfgFileName = "tester.toml"

func loadConfig() {
	has := false
	for _, dirPath := range defCfgFilePaths {
		fpath := filepath.Join(dirPath, cfgFileName)
		if util.FileIsValid(fpath) {
			viper.SetConfigFile(fpath)
			err := viper.ReadInConfig()
			if err != nil {
				util.Error("viper load config file failed",
					zap.String("fpath", fpath),
					zap.Error(err))
				continue
			}
			has = true
			break
		}
	}
	if !has {
		util.Error("tester.toml does not exist")
		os.Exit(1)
	}
}

func main() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
