package backend

func init() {
	Register(&Codex{})
}

// Codex is the Codex CLI variant. The prompt is piped to stdin of
// `codex exec`. Tool access is expressed through sandbox flags rather than
// per-tool lists: normally --full-auto (workspace writes and command
// execution, no approval prompts); any deny entry drops the sandbox to
// read-only, the coarsest denial the CLI offers. There is no model flag;
// the model comes from the CLI's own configuration.
type Codex struct{}

func (*Codex) Name() string { return "codex" }

func (*Codex) Command() string { return "codex" }

func (*Codex) PromptViaStdin() bool { return true }

func (*Codex) Args(opts RunOptions) []string {
	args := []string{"exec"}
	if len(opts.DeniedTools) > 0 {
		return append(args, "--ask-for-approval", "never", "--sandbox", "read-only")
	}
	return append(args, "--full-auto")
}
