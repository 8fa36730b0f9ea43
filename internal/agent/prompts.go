package agent

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dohr-michael/skillrouter/internal/config"
)

// RouterInstruction is the stage-one system prompt. The registry's skill list
// is appended to it on every call.
const RouterInstruction = `You are a skill router. Your job is to:
1. Read the user's query
2. Identify which skill best matches their need
3. Call load_skill(skill_name) to load that skill

Do NOT try to answer the question yourself.
Just load the appropriate skill.`

// ExecutorInstruction is the stage-two system prompt.
const ExecutorInstruction = `You are a task executor. You will receive:
1. The user's original query
2. Skill instructions that guide you

Follow the skill instructions to use the available tools correctly.
The skill tells you which tools to use and how to format parameters.`

// SkillAgentInstruction is the single-stage agent's system prompt.
const SkillAgentInstruction = `You are a skill AI assistant that helps users perform tasks that are defined as skills.`

// ShellInstruction is the shell agent's system prompt.
const ShellInstruction = `You are a helpful assistant with access to shell commands. Help the user with their tasks.`

// Placeholders filled into the selector and skill-first prompts.
const (
	SkillsPlaceholder       = "{{skills}}"
	InstructionsPlaceholder = "{{instructions}}"
)

// SelectorInstruction asks the model for exactly one skill as JSON.
// SkillsPlaceholder receives the skill summaries.
const SelectorInstruction = `You are a helpful AI assistant tasked with selecting the MOST relevant skill.
Available skills:
{{skills}}

Only these skills are available.

IMPORTANT: You MUST select ONLY ONE skill - the single most relevant skill for the user's query.

Guidelines:
- Analyze the user's query carefully
- Match keywords in the query to skill names and descriptions
- Select ONLY the skill that best matches the user's intent

Respond with JSON only, in this exact shape:
{"skills": [{"name": "<skill name>", "description": "<skill description>"}]}`

// SelectorQuery wraps the user query for the selector call.
const SelectorQuery = "List the most relevant skills that are connected to this user query: %s"

// SkillFirstInstruction is the executor prompt of the skill-first pipeline.
// InstructionsPlaceholder receives the selected skills' instructions.
const SkillFirstInstruction = `You are an AI assistant that EXECUTES tasks using tools.

INSTRUCTIONS:
{{instructions}}

CRITICAL RULES:
1. Read the instructions above
2. Make the required tool calls IMMEDIATELY
3. Do NOT write "I will call" or "Here are the tool calls"
4. Do NOT explain what you're going to do
5. Just execute the tool calls directly with proper parameters

When instructions say "Call X with Y", you must invoke that tool immediately.`

// EnhancedQuery builds the stage-two user message from the original query
// and the loaded skill text.
func EnhancedQuery(query, skillText string) string {
	return fmt.Sprintf(`Original Query: %s

Skill Guidance:
%s

Instructions: Answer the user's original query above, following the skill guidance.
Use the available tools as instructed by the skill.`, query, skillText)
}

// fillPlaceholder substitutes value for every placeholder in tmpl. Templates
// loaded from disk may omit it; value is then appended on its own paragraph.
func fillPlaceholder(tmpl, placeholder, value string) string {
	if !strings.Contains(tmpl, placeholder) {
		return strings.TrimRight(tmpl, "\n") + "\n\n" + value
	}
	return strings.ReplaceAll(tmpl, placeholder, value)
}

// Instructions holds the system prompts of every agent.
type Instructions struct {
	Router     string
	Executor   string
	SkillAgent string
	Shell      string
	Selector   string
	SkillFirst string
}

// DefaultInstructions returns the built-in prompts.
func DefaultInstructions() Instructions {
	return Instructions{
		Router:     RouterInstruction,
		Executor:   ExecutorInstruction,
		SkillAgent: SkillAgentInstruction,
		Shell:      ShellInstruction,
		Selector:   SelectorInstruction,
		SkillFirst: SkillFirstInstruction,
	}
}

// LoadInstructions returns the built-in prompts, each replaced by
// prompts/<NAME>.md under the root directory when that file exists and is
// not blank (ROUTER.md, EXECUTOR.md, SKILL_AGENT.md, SHELL.md, SELECTOR.md,
// SKILL_FIRST.md). SELECTOR.md may place {{skills}} and SKILL_FIRST.md
// {{instructions}}; text is never treated as a format string.
func LoadInstructions() Instructions {
	dir := filepath.Join(config.RootPath(), "prompts")
	in := DefaultInstructions()
	in.Router = loadInstruction(dir, "ROUTER.md", in.Router)
	in.Executor = loadInstruction(dir, "EXECUTOR.md", in.Executor)
	in.SkillAgent = loadInstruction(dir, "SKILL_AGENT.md", in.SkillAgent)
	in.Shell = loadInstruction(dir, "SHELL.md", in.Shell)
	in.Selector = loadInstruction(dir, "SELECTOR.md", in.Selector)
	in.SkillFirst = loadInstruction(dir, "SKILL_FIRST.md", in.SkillFirst)
	return in
}

func loadInstruction(dir, name, fallback string) string {
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return fallback
	}
	content := strings.TrimSpace(string(data))
	if content == "" {
		return fallback
	}
	return content
}
