// Package analyzer orchestrates the analysis pipeline over one or more C
// source files: ingestion into the symbol table and graphs, heap-provenance
// classification and propagation, module partitioning, and export.
package analyzer

import (
	"fmt"
	"os"

	"github.com/l3aro/carch/internal/log"
	"github.com/l3aro/carch/pkg/export"
	"github.com/l3aro/carch/pkg/fact"
	"github.com/l3aro/carch/pkg/graph"
	"github.com/l3aro/carch/pkg/heap"
	"github.com/l3aro/carch/pkg/partition"
	"github.com/l3aro/carch/pkg/symtab"
)

// IssueKind classifies a non-fatal condition recorded during analysis.
type IssueKind string

const (
	IssueIngestion         IssueKind = "ingestion"
	IssueUnknownReference  IssueKind = "unknown_reference"
	IssuePartitionFallback IssueKind = "partition_fallback"
	IssueFileSkipped       IssueKind = "file_skipped"
)

// Issue is one recorded condition. No issue aborts the run.
type Issue struct {
	Kind     IssueKind `json:"kind"`
	Message  string    `json:"message"`
	Location string    `json:"location,omitempty"`
}

// Options configure one analysis run.
type Options struct {
	// Algorithm selects the partitioning strategy.
	Algorithm partition.Algorithm
	// HeapPolicy decides which callees count as allocators.
	HeapPolicy heap.Policy
	// AggregateHeuristic enables the struct-member heap heuristic.
	AggregateHeuristic bool
	// Rules is the business-module classifier table. Empty means no
	// business-logic graph is produced.
	Rules []partition.Rule
	// Logger receives progress and issue reporting. Defaults to the
	// package default logger.
	Logger log.Logger
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		Algorithm:          partition.AlgorithmCommunity,
		HeapPolicy:         heap.DefaultPolicy(),
		AggregateHeuristic: true,
	}
}

type phase int

const (
	phaseIngest phase = iota
	phasePropagate
	phasePartition
)

// Analysis is the shared state of one run, passed through the phases in
// order. Ingestion may mutate everything, propagation only heap flags, and
// partitioning nothing.
type Analysis struct {
	Symbols   *symtab.Table
	Graph     *graph.Graph
	Heap      heap.Result
	Partition partition.Result
	Business  partition.BusinessGraph
	Issues    []Issue
	Files     []string

	opts       Options
	builder    *graph.Builder
	engine     *heap.Engine
	classifier *partition.Classifier
	logger     log.Logger
	phase      phase
}

// New prepares an empty analysis.
func New(opts Options) (*Analysis, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	symbols := symtab.New()
	builder := graph.NewBuilder(symbols)

	engine := heap.NewEngine(opts.HeapPolicy)
	engine.AggregateHeuristic = opts.AggregateHeuristic

	a := &Analysis{
		Symbols: symbols,
		Graph:   builder.Graph(),
		opts:    opts,
		builder: builder,
		engine:  engine,
		logger:  logger,
	}
	if len(opts.Rules) > 0 {
		classifier, err := partition.NewClassifier(opts.Rules)
		if err != nil {
			return nil, fmt.Errorf("building classifier: %w", err)
		}
		a.classifier = classifier
	}
	return a, nil
}

// IngestFile parses one C file and feeds its facts in. A parse or read
// failure skips the file, records an issue, and leaves results from other
// files intact.
func (a *Analysis) IngestFile(path string) error {
	if a.phase != phaseIngest {
		return fmt.Errorf("ingestion is closed")
	}
	content, err := os.ReadFile(path)
	if err != nil {
		a.skipFile(path, err)
		return nil
	}
	src := fact.NewCAdapterFromBytes(path, content)
	facts, err := src.Facts()
	if err != nil {
		a.skipFile(path, err)
		return nil
	}
	a.ingestFacts(facts)
	a.Files = append(a.Files, path)
	a.logger.Debug("ingested file", "path", path, "facts", len(facts))
	return nil
}

// IngestFacts feeds an already-extracted fact stream in, for callers that
// bring their own front end.
func (a *Analysis) IngestFacts(facts []fact.Fact) error {
	if a.phase != phaseIngest {
		return fmt.Errorf("ingestion is closed")
	}
	a.ingestFacts(facts)
	return nil
}

func (a *Analysis) ingestFacts(facts []fact.Fact) {
	before := len(a.builder.Issues())
	a.builder.IngestAll(facts)
	for _, issue := range a.builder.Issues()[before:] {
		a.record(issue)
	}
}

func (a *Analysis) skipFile(path string, err error) {
	a.logger.Warn("skipping file", "path", path, "error", err)
	a.Issues = append(a.Issues, Issue{
		Kind:     IssueFileSkipped,
		Message:  err.Error(),
		Location: path,
	})
}

func (a *Analysis) record(issue graph.Issue) {
	kind := IssueIngestion
	if issue.Kind == graph.IssueUnknownReference {
		kind = IssueUnknownReference
	}
	a.Issues = append(a.Issues, Issue{
		Kind:     kind,
		Message:  issue.Message,
		Location: issue.Location,
	})
}

// Finish closes ingestion and runs the remaining phases: direct heap
// classification and heap-reference edges while the graphs are still
// mutable, then the freeze, fixed-point propagation, and partitioning.
func (a *Analysis) Finish() {
	if a.phase != phaseIngest {
		return
	}

	direct := a.engine.DirectClassify(a.Symbols)
	refs := a.engine.AddHeapReferenceEdges(a.Symbols, a.Graph)
	a.Graph.Freeze()
	a.phase = phasePropagate

	a.Heap = a.engine.Propagate(a.Symbols, a.Graph)
	a.Heap.Direct = direct
	a.logger.Debug("heap classification done",
		"direct", direct, "propagated", a.Heap.Propagated, "passes", a.Heap.Passes, "reference_edges", refs)
	a.phase = phasePartition

	a.Partition = partition.Partition(a.Graph, a.Symbols, a.opts.Algorithm)
	if a.Partition.FellBack {
		a.logger.Warn("community detection produced a degenerate partition, using connected components")
		a.Issues = append(a.Issues, Issue{
			Kind:    IssuePartitionFallback,
			Message: "community detection degenerate, fell back to connected components",
		})
	}

	if a.classifier != nil {
		a.Business = a.classifier.BuildBusinessGraph(a.Graph, a.Symbols)
	}
}

// Document builds the interop export document. Finish must have run.
func (a *Analysis) Document() *export.Document {
	return export.Build(a.Symbols, a.Graph, a.Business)
}

// Export writes the interop document to path. A write failure is returned
// to the caller and does not disturb the in-memory results.
func (a *Analysis) Export(path string) error {
	if err := a.Document().WriteFile(path); err != nil {
		a.logger.Error("export failed", "error", err)
		return err
	}
	return nil
}

// Run analyzes the given files end to end and returns the completed
// analysis. Per-file failures are recorded as issues, never fatal.
func Run(paths []string, opts Options) (*Analysis, error) {
	a, err := New(opts)
	if err != nil {
		return nil, err
	}
	for _, path := range paths {
		if err := a.IngestFile(path); err != nil {
			return nil, err
		}
	}
	a.Finish()
	return a, nil
}
