/*
Package stategraph provides a small graph-based workflow engine with typed
state fields, conditional routing, per-thread checkpointing and
interrupt/resume.

# Overview

A workflow is a directed graph of named nodes. Each node receives the
current state and returns a partial update; the executor merges the update
field by field according to the field's declared merge policy, picks the
next node from the edge table and repeats until END. Steps never overlap
within a run.

# State and merge policies

State fields are declared once with a Go type and a policy:

	schema := stategraph.NewSchema(
	    stategraph.NewField[int]("count", stategraph.Overwrite),
	    stategraph.NewField[int]("sum", stategraph.Add),
	    stategraph.NewField[[]int]("history", stategraph.Append),
	)

Overwrite replaces the value, Append concatenates (or appends one element)
and Add sums numbers. Updates naming undeclared fields fail the step.
Read values with Value and Lookup:

	count := stategraph.Value[int](s, "count")

# Basic Usage

	func increment(ctx stategraph.Context, s stategraph.State) (stategraph.Update, error) {
	    n := stategraph.Value[int](s, "count") + 1
	    return stategraph.Update{"count": n, "sum": 1, "history": n}, nil
	}

	func shouldContinue(ctx stategraph.Context, s stategraph.State) string {
	    if stategraph.Value[int](s, "count") < 5 {
	        return "continue"
	    }
	    return "stop"
	}

	compiled, err := stategraph.NewGraph(schema).
	    AddNode("increment", increment).
	    AddConditionalEdges("increment", shouldContinue, map[string]string{
	        "continue": "increment",
	        "stop":     stategraph.END,
	    }).
	    SetEntry("increment").
	    Compile()
	if err != nil {
	    log.Fatal(err)
	}

	ctx := stategraph.NewContext(context.Background())
	result, err := compiled.Run(ctx, nil)
	// result.State["history"] == []int{1, 2, 3, 4, 5}

# Compilation

Compile reports every structural problem at once, joined with errors.Join:
missing or unknown entry point, edges to unknown nodes, nodes without an
outgoing edge, nodes unreachable from the entry point, and nodes with more
than one way to choose a successor. Use errors.Is with the Err* sentinels.

There is no built-in step limit. Loops end when the graph's own routing
says so; WithMaxSteps adds a guard when wanted.

# Commands

A node added with AddCommandNode returns a Command carrying an update and
the next node. Destinations are declared at registration so Compile can
check them:

	graph.AddCommandNode("human", human, "model", "end_node")

# Checkpointing

With a store and a thread ID, every completed step is checkpointed and a
later Run on the same thread continues where the thread stopped:

	store, err := checkpoint.NewSQLiteStore("./checkpoints.db")
	if err != nil {
	    log.Fatal(err)
	}
	defer store.Close()

	result, err := compiled.Run(ctx, stategraph.Update{"messages": msg},
	    stategraph.WithCheckpointing(store),
	    stategraph.WithThreadID("thread-1"))

GetState and UpdateState read and edit a thread's latest checkpoint.

# Interrupts

A node suspends with Interrupt. The run returns with Result.Interrupt set
and the thread parked at that node. Resume runs the node again and the
Interrupt call returns the supplied value:

	func review(ctx stategraph.Context, s stategraph.State) (stategraph.Update, error) {
	    answer, err := stategraph.Interrupt(ctx, map[string]string{"ask": "feedback"})
	    if err != nil {
	        return nil, err
	    }
	    return stategraph.Update{"feedback": answer}, nil
	}

	result, err = compiled.Resume(ctx, store, "thread-1", "approved")

Run on a parked thread, Resume on a thread that is not parked and a second
Interrupt while one is pending all fail with a *ProtocolError.

# Observability

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	result, err := compiled.Run(ctx, input,
	    stategraph.WithObservabilityLogger(logger),
	    stategraph.WithMetrics(true),
	    stategraph.WithTracing(true))

Logs carry thread_id, node_id and step. OpenTelemetry metrics are named
stategraph.node.executions, stategraph.graph.runs, stategraph.interrupts
and so on; spans are stategraph.run > stategraph.node.{id}.

# Thread Safety

  - Graph is NOT safe for concurrent use during construction
  - CompiledGraph IS safe for concurrent use on distinct threads
  - Concurrent runs on one thread in one process fail with ErrThreadBusy
  - checkpoint.Store implementations serialize writes per thread

# Subpackages

  - checkpoint: checkpoint records and stores (memory, SQLite, Redis)
  - observability: logging, metrics and tracing helpers
  - config: typed configuration loading
  - retry: error categorisation and retry for node authors
  - template: prompt templating
  - registry: generic thread-safe registry
  - llm: text generation capability and a scripted fake
  - tools: tool capability, registry and tool-executing node
*/
package stategraph
