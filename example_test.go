package parley_test

import (
	"context"
	"fmt"
	"log"

	"github.com/aretw0/parley"
	"github.com/aretw0/parley/pkg/adapters/memory"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/dsl"
	"github.com/aretw0/parley/pkg/ports"
)

// ExampleNew_memory runs a conversation against an in-memory workflow and a scripted model.
func ExampleNew_memory() {
	catalog, err := memory.NewLoader(map[string]string{
		"workflow.json": `{
		  "startNode": "start",
		  "nodes": [
		    {"id": "start", "question": "Ready?", "questionType": "OptionsWithText",
		     "answers": [{"response": "Yes", "nextNode": "end"}]},
		    {"id": "end", "question": "Done.", "questionType": "Terminal"}
		  ]
		}`,
	})
	if err != nil {
		log.Fatal(err)
	}

	eng, err := parley.New(
		parley.WithCatalog(catalog),
		parley.WithCompleter(memory.NewCompleter("Take your time.")),
	)
	if err != nil {
		log.Fatal(err)
	}

	sink := ports.SinkFunc(func(_ context.Context, ev domain.Event) error {
		switch ev.Type {
		case domain.EventPresentNode:
			fmt.Println("node:", ev.NodeID)
		case domain.EventStreamChunk:
			fmt.Print(ev.Text)
		case domain.EventStreamEnd:
			fmt.Println()
		}
		return nil
	})

	ctx := context.Background()
	_ = eng.Present(ctx, "demo", sink)
	_ = eng.Converse(ctx, "demo", "what is this?", sink)
	_ = eng.Converse(ctx, "demo", "yes", sink)

	// Output:
	// node: start
	// Take your time.
	// node: start
	// node: end
}

// ExampleWithDefaultWorkflow serves a workflow built in Go.
func ExampleWithDefaultWorkflow() {
	wf := dsl.New("onboarding").
		Add("welcome").Ask("Do you have an account?").Choice().
		Answer("Yes", "login").
		Answer("No", "signup").
		Then().
		Add("login").Ask("Please log in.").Terminal().
		Then().
		Add("signup").Ask("Let's create one.").Terminal().
		Then().
		MustBuild()

	eng, err := parley.New(
		parley.WithCatalog(memory.NewCatalog(wf)),
		parley.WithCompleter(memory.NewCompleter()),
		parley.WithDefaultWorkflow("onboarding"),
	)
	if err != nil {
		log.Fatal(err)
	}

	sink := ports.SinkFunc(func(_ context.Context, ev domain.Event) error {
		if ev.Type == domain.EventPresentNode {
			fmt.Println("node:", ev.NodeID)
		}
		return nil
	})

	_ = eng.Converse(context.Background(), "demo", "no", sink)

	// Output:
	// node: signup
}
