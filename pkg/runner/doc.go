/*
Package runner implements the terminal chat loop for the Parley engine and the input
sanitation shared by every transport.

The Runner prints each presented node as its question and a numbered list of options,
streams assistant replies as they arrive, and maps a typed option number to its label.

# Usage

	interrupts, stop := runner.NotifyInterrupts()
	defer stop()

	r := runner.NewRunner(engine,
		runner.WithConversationID("user-1"),
		runner.WithRenderer(tui.NewRenderer()),
		runner.WithInterrupts(interrupts),
	)

	if err := r.Run(ctx); err != nil {
		log.Fatal(err)
	}
*/
package runner
