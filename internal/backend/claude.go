package backend

import "strings"

func init() {
	Register(&Claude{})
}

// Claude is the Claude Code CLI variant. The prompt travels as the final
// positional argument of a `--print` one-shot; tool access is gated with
// --allowedTools/--disallowedTools and the model with --model.
type Claude struct{}

func (*Claude) Name() string { return "claude" }

func (*Claude) Command() string { return "claude" }

func (*Claude) PromptViaStdin() bool { return false }

func (*Claude) Args(opts RunOptions) []string {
	args := []string{"--print", "--dangerously-skip-permissions"}
	if opts.Model != "" {
		args = append(args, "--model", opts.Model)
	}
	if len(opts.AllowedTools) > 0 {
		args = append(args, "--allowedTools", strings.Join(opts.AllowedTools, ","))
	}
	if len(opts.DeniedTools) > 0 {
		args = append(args, "--disallowedTools", strings.Join(opts.DeniedTools, ","))
	}
	return append(args, opts.Prompt)
}
