// Command gen-bot writes the demo bot files under examples/ so they can
// be regenerated from the dsl builder instead of edited by hand.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/chatwalk/chatwalk/pkg/domain"
	"github.com/chatwalk/chatwalk/pkg/dsl"
)

func main() {
	targetDir := "examples"
	if len(os.Args) > 1 {
		targetDir = os.Args[1]
	}

	if err := os.MkdirAll(targetDir, 0755); err != nil {
		panic(err)
	}

	fmt.Printf("Generating demo bots in: %s\n", targetDir)

	write(targetDir, "onboarding.json", onboarding())
	write(targetDir, "age-gate.json", ageGate())

	fmt.Println("Done. Try: chatwalk run", filepath.Join(targetDir, "onboarding.json"))
}

func onboarding() *domain.Graph {
	b := dsl.New("onboarding")
	b.Variable("name", nil).Variable("email", nil)
	b.Group("welcome").
		Title("Welcome").
		Text("Hi there! 👋").
		Text("What should I call you?").
		Ask("name").
		Go("contact")
	b.Group("contact").
		Text("Nice to meet you, {{name}}!").
		Email("email").
		Go("goodbye")
	b.Group("goodbye").
		Text("Thanks {{name}}, we will reach out at {{email}}.")
	return b.MustBuild()
}

func ageGate() *domain.Graph {
	b := dsl.New("age-gate")
	b.StartAt("gate").Command("restart", "gate")
	b.Group("gate").
		Text("Before we start, how old are you?").
		Number("age").
		Condition("age >= 18").
		Branch("true", "adult").
		Branch("false", "minor")
	b.Group("adult").
		Choice("drink", "Coffee", "Tea", "Water").
		Go("served")
	b.Group("minor").
		Text("Come back when you are older.")
	b.Group("served").
		Text("One {{drink}}, coming right up!")
	return b.MustBuild()
}

func write(dir, name string, g *domain.Graph) {
	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		panic(err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		panic(err)
	}
	fmt.Println("  wrote", path)
}
