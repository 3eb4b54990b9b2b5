/*
Package dsl builds parley workflows in Go.

It is an alternative to JSON or YAML files for tests, generated workflows and
embedding, with the fluent style keeping the shape of the conversation visible:

	wf, err := dsl.New("support").
		Add("start").Ask("What do you need help with?").ChoiceWithText().
		Answer("Billing", "billing").
		Answer("Something else", "end").
		Then().
		Add("billing").Ask("Is it about an invoice?").Choice().
		Answer("Yes", "end").
		Stay("Not sure").
		Then().
		Add("end").Ask("Thanks, bye!").Terminal().
		Then().
		Build()

The graph can be served through memory.NewCatalog(wf).
*/
package dsl
