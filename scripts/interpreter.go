package scripts

import (
	"bytes"
	"fmt"
	"log/slog"

	"github.com/reusee/spawnvm/instances"
	"github.com/reusee/spawnvm/logs"
	"github.com/reusee/spawnvm/syscalls"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

const Header = "#!star"

var fileOptions = &syntax.FileOptions{
	Set:       true,
	While:     true,
	Recursion: true,
}

// Interpreter runs Starlark images. An image defines main(argv) and returns its exit code.
type Interpreter struct {
	Logger logs.Logger
}

var _ instances.Interpreter = new(Interpreter)

func (i *Interpreter) Instantiate(image []byte, argv [][]byte) (instances.Machine, error) {
	if !bytes.HasPrefix(image, []byte(Header)) {
		return nil, syscalls.WrongFormat
	}
	file, err := fileOptions.Parse("script.star", image, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", syscalls.WrongFormat, err)
	}
	if !definesMain(file) {
		return nil, fmt.Errorf("%w: main not defined", syscalls.WrongFormat)
	}
	program, err := starlark.FileProgram(file, isBuiltin)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", syscalls.WrongFormat, err)
	}

	logger := i.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return newMachine(program, argv, logger), nil
}

func definesMain(file *syntax.File) bool {
	for _, stmt := range file.Stmts {
		if def, ok := stmt.(*syntax.DefStmt); ok && def.Name.Name == "main" {
			return true
		}
	}
	return false
}
