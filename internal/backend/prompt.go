package backend

import (
	"fmt"
	"strings"

	"github.com/nightshift-labs/nightshift/internal/specfile"
	"github.com/nightshift-labs/nightshift/internal/task"
)

// promptTrailer is shared by both templates. Committing is the pipeline's
// job; a backend that commits on its own would desynchronize the run.
const promptTrailer = `Requirements:
- Follow the existing code style and conventions of this repository.
- Add error handling consistent with the surrounding code.
- Make minimal, focused changes; do not refactor unrelated code.
- Do not commit; leave all changes in the working tree.`

// BuildPrompt renders the implementation prompt for one task. With loaded
// specification content the backend is instructed to implement everything
// the specification states; without it, to infer scope from the title and
// the existing code.
func BuildPrompt(t task.Task, spec specfile.Content) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Implement the following task in this repository.\n\n")
	fmt.Fprintf(&b, "Task: %s\n\n", t.Title)

	if spec.Empty() {
		b.WriteString("There is no separate specification for this task. ")
		b.WriteString("Infer the scope from the task title and the conventions of the existing code.\n\n")
	} else {
		b.WriteString("The full specification follows. Implement ALL requirements it states.\n\n")
		fmt.Fprintf(&b, "--- SPECIFICATION (%s) ---\n", spec.Path)
		b.WriteString(strings.TrimRight(spec.Text, "\n"))
		b.WriteString("\n--- END SPECIFICATION ---\n")
		if spec.Truncated {
			b.WriteString("Note: the specification was truncated at the size cap; prefer the requirements shown above.\n")
		}
		b.WriteString("\n")
	}

	b.WriteString(promptTrailer)
	return b.String()
}
