// Package prompt assembles text-completion prompts from chat history.
package prompt

import "strings"

// Instruct describes how chat turns are wrapped for a text-completion model.
type Instruct struct {
	Name          string   `json:"name" yaml:"name" toml:"name"`
	SystemPrompt  string   `json:"system_prompt" yaml:"system_prompt" toml:"system_prompt"`
	SystemPrefix  string   `json:"system_prefix" yaml:"system_prefix" toml:"system_prefix"`
	SystemSuffix  string   `json:"system_suffix" yaml:"system_suffix" toml:"system_suffix"`
	InputPrefix   string   `json:"input_prefix" yaml:"input_prefix" toml:"input_prefix"`
	InputSuffix   string   `json:"input_suffix" yaml:"input_suffix" toml:"input_suffix"`
	OutputPrefix  string   `json:"output_prefix" yaml:"output_prefix" toml:"output_prefix"`
	OutputSuffix  string   `json:"output_suffix" yaml:"output_suffix" toml:"output_suffix"`
	StopSequences []string `json:"stop_sequences" yaml:"stop_sequences" toml:"stop_sequences"`
	// ReplaceStrings are stripped from displayed output in addition to the
	// stop sequences.
	ReplaceStrings []string `json:"replace_strings" yaml:"replace_strings" toml:"replace_strings"`
	IncludeNames   bool     `json:"include_names" yaml:"include_names" toml:"include_names"`
}

// DefaultInstruct returns a ChatML format.
func DefaultInstruct() Instruct {
	return Instruct{
		Name:          "ChatML",
		SystemPrompt:  "Write {{char}}'s next reply in a fictional chat between {{char}} and {{user}}.",
		SystemPrefix:  "<|im_start|>system\n",
		SystemSuffix:  "<|im_end|>\n",
		InputPrefix:   "<|im_start|>user\n",
		InputSuffix:   "<|im_end|>\n",
		OutputPrefix:  "<|im_start|>assistant\n",
		OutputSuffix:  "<|im_end|>\n",
		StopSequences: []string{"<|im_end|>"},
		IncludeNames:  true,
	}
}

// Names are the macro substitutions applied to instruct strings.
type Names struct {
	User string
	Char string
}

// Expand replaces {{user}} and {{char}} macros in s.
func (n Names) Expand(s string) string {
	if !strings.Contains(s, "{{") {
		return s
	}
	r := strings.NewReplacer("{{user}}", n.User, "{{char}}", n.Char, "{{User}}", n.User, "{{Char}}", n.Char)
	return r.Replace(s)
}
