package execshell

// RunRequest describes a single executable invocation requested by a caller.
type RunRequest struct {
	WorkingDirectory string
	BinaryName       string
	Arguments        []string
	UseElevation     bool
}

// ResolvedCommand carries the concrete argument vector and its human-readable rendering.
type ResolvedCommand struct {
	Arguments      []string
	DisplayCommand string
	Elevated       bool
}

// RunResult captures the observable outcome of a completed run.
type RunResult struct {
	RunID          string `json:"runId" yaml:"run_id"`
	StandardOutput string `json:"stdout" yaml:"stdout"`
	StandardError  string `json:"stderr" yaml:"stderr"`
	ExitCode       int    `json:"exitCode" yaml:"exit_code"`
	DisplayCommand string `json:"command" yaml:"command"`
	Stopped        bool   `json:"stopped" yaml:"stopped"`
}

// StopResult reports whether a live process was found and termination was initiated.
type StopResult struct {
	Stopped bool `json:"stopped" yaml:"stopped"`
}

// RunOutcome is delivered exactly once by Session.Submit.
type RunOutcome struct {
	Result RunResult
	Error  error
}
