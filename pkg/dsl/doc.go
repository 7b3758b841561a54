/*
Package dsl provides a fluent Go builder for constructing bot graphs
programmatically, instead of authoring external JSON or YAML files.
This is particularly useful for dynamic graph generation, unit testing,
and leveraging IDE autocompletion and type-checking.

Example usage:

	b := dsl.New("onboarding")

	b.Group("welcome").
		Text("Hi there!").
		Email("email").
		Go("goodbye")

	b.Group("goodbye").
		Text("Bye {{email}}!")

	graph, err := b.Build()
	// graph can be passed inline to StartChat or registered in a bot
	// registry.
*/
package dsl
