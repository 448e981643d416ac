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

package util

type SortMemoryOptions struct {
	BudgetBytes  int `tag:"budgetBytes"`
	MaxRecordLen int `tag:"maxRecordLen"`
}

type CostOptions struct {
	IoBlockReadCost float64 `tag:"ioBlockReadCost"`
	KeyCompareCost  float64 `tag:"keyCompareCost"`
}

type BenchOptions struct {
	Rows        int  `tag:"rows"`
	Workers     int  `tag:"workers"`
	Preallocate bool `tag:"preallocate"`
	VarlenKeys  bool `tag:"varlenKeys"`
	KeyLen      int  `tag:"keyLen"`
	StableSort  bool `tag:"stableSort"`
	PrintMemory bool `tag:"printMemory"`
}

type EstimateOptions struct {
	Rows          uint64 `tag:"rows"`
	KeysPerBuffer uint64 `tag:"keysPerBuffer"`
	ElemSize      int    `tag:"elemSize"`
	PrintPasses   bool   `tag:"printPasses"`
}

type Config struct {
	SortMemory SortMemoryOptions `tag:"sortMemory"`
	Cost       CostOptions       `tag:"cost"`
	Bench      BenchOptions      `tag:"bench"`
	Estimate   EstimateOptions   `tag:"estimate"`
}
