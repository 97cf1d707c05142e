package runner

import "context"

// Tool binds a Resolver, a Runner and an environment into one executable handle.
type Tool struct {
	Resolver *Resolver
	Runner   Runner
	Env      []string
}

// Path resolves the executable.
func (t *Tool) Path(ctx context.Context) (string, error) {
	return t.Resolver.Resolve(ctx)
}

// Available reports whether the executable resolves and validates.
func (t *Tool) Available(ctx context.Context) bool {
	_, err := t.Path(ctx)
	return err == nil
}

// Exec resolves the executable and runs it with args and stdin.
func (t *Tool) Exec(ctx context.Context, stdin []byte, args ...string) (Result, error) {
	path, err := t.Path(ctx)
	if err != nil {
		return Result{}, err
	}
	return t.Runner.Run(ctx, Command{
		Path:  path,
		Args:  args,
		Stdin: stdin,
		Env:   t.Env,
	})
}
