/*
Package parley runs guided conversations: a user walks a workflow graph of questions and
answers, and whatever the graph cannot interpret is handed to a language model whose reply
streams back before the user is brought back to the same question.

# Concept

A workflow is a graph of nodes. Each node asks a question and lists the answers it accepts,
each answer leading to another node. A conversation sits on one node at a time. A user
utterance that matches an answer label (case-insensitive) moves the conversation; anything
else on a node that accepts free text escapes to the model. The conversation never leaves the
node during a free-text exchange.

Every turn produces a short ordered list of events: the node to present, the chunks of a
streamed reply followed by its end marker, and user-facing error notices. The Engine sends
them to the caller's sink and to an event bus other processes can subscribe to.

# Usage

	catalog := file.New("./workflows")
	completer := openai.New(openai.Config{APIKey: os.Getenv("OPENAI_API_KEY")})

	eng, err := parley.New(
		parley.WithCatalog(catalog),
		parley.WithCompleter(completer),
	)
	if err != nil {
		log.Fatal(err)
	}

	sink := ports.SinkFunc(func(ctx context.Context, ev domain.Event) error {
		fmt.Println(ev.Type, ev.NodeID, ev.Text, ev.Message)
		return nil
	})

	// Show the first question, then answer it.
	_ = eng.Present(ctx, "conv-1", sink)
	_ = eng.Converse(ctx, "conv-1", "yes", sink)

Turns of one conversation are serialized; different conversations run in parallel.
*/
package parley
