// Package messages holds the user-facing texts of the bot.
package messages

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed es.yaml
var spanish []byte

// Command describes one entry of the command menu.
type Command struct {
	Command     string `yaml:"command"`
	Description string `yaml:"description"`
}

// Catalog is the set of texts the bot sends.
type Catalog struct {
	Greeting           string    `yaml:"greeting"`
	NeedMoreData       string    `yaml:"need_more_data"`
	TryAgain           string    `yaml:"try_again"`
	AudioFailed        string    `yaml:"audio_failed"`
	Milestone          string    `yaml:"milestone"`
	Stats              string    `yaml:"stats"`
	About              string    `yaml:"about"`
	FixMe              string    `yaml:"fix_me"`
	DeletePrompt       string    `yaml:"delete_prompt"`
	DeleteDone         string    `yaml:"delete_done"`
	DeleteCancelled    string    `yaml:"delete_cancelled"`
	FrequencyCurrent   string    `yaml:"frequency_current"`
	FrequencySet       string    `yaml:"frequency_set"`
	FrequencyInvalid   string    `yaml:"frequency_invalid"`
	FrequencyFailed    string    `yaml:"frequency_failed"`
	NoStickers         string    `yaml:"no_stickers"`
	QuoteUsage         string    `yaml:"quote_usage"`
	Quote              string    `yaml:"quote"`
	LearnNeedsDocument string    `yaml:"learn_needs_document"`
	LearnWrongFormat   string    `yaml:"learn_wrong_format"`
	LearnPrompt        string    `yaml:"learn_prompt"`
	LearnStarted       string    `yaml:"learn_started"`
	LearnDone          string    `yaml:"learn_done"`
	LearnCancelled     string    `yaml:"learn_cancelled"`
	LearnExpired       string    `yaml:"learn_expired"`
	CommandsHeader     string    `yaml:"commands_header"`
	CommandsFooter     string    `yaml:"commands_footer"`
	Commands           []Command `yaml:"commands"`
}

// Spanish returns the built-in Spanish catalog.
func Spanish() (*Catalog, error) {
	return Parse(spanish)
}

// Parse decodes a catalog and checks that no text is missing.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode message catalog: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) validate() error {
	required := map[string]string{
		"need_more_data": c.NeedMoreData,
		"try_again":      c.TryAgain,
		"milestone":      c.Milestone,
		"stats":          c.Stats,
		"delete_prompt":  c.DeletePrompt,
		"learn_prompt":   c.LearnPrompt,
		"quote":          c.Quote,
	}
	for key, v := range required {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("message catalog: missing %q", key)
		}
	}
	if len(c.Commands) == 0 {
		return fmt.Errorf("message catalog: no commands")
	}
	return nil
}

// CommandList renders the /comandos help text.
func (c *Catalog) CommandList(version string) string {
	var b strings.Builder
	fmt.Fprintf(&b, c.CommandsHeader, version)
	b.WriteString("\n\n")
	for _, cmd := range c.Commands {
		fmt.Fprintf(&b, "/%s - %s\n\n", cmd.Command, cmd.Description)
	}
	b.WriteString(c.CommandsFooter)
	return b.String()
}
