package runner

import "os"

// SafePath is the PATH handed to every subprocess.
const SafePath = "/usr/bin:/bin:/usr/sbin:/sbin:/usr/local/bin:/opt/homebrew/bin"

// MinimalEnv returns the explicit environment for git/gh subprocesses: a fixed
// PATH and locale, no prompts, no pager or editor, no askpass helpers.
func MinimalEnv(home string) []string {
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return []string{
		"HOME=" + home,
		"PATH=" + SafePath,
		"LANG=en_US.UTF-8",
		"LC_ALL=en_US.UTF-8",
		"GIT_TERMINAL_PROMPT=0",
		"GIT_PAGER=cat",
		"PAGER=cat",
		"GIT_EDITOR=true",
		"EDITOR=true",
		"GIT_ASKPASS=",
		"SSH_ASKPASS=",
		"GH_PROMPT_DISABLED=1",
		"GH_NO_UPDATE_NOTIFIER=1",
		"NO_COLOR=1",
	}
}
