package tools

import (
	"context"
	"errors"
	"io/fs"
	"os"
)

var fileReaderSpec = Spec{
	Name:        string(FileReader),
	Description: "Read the contents of a text file.",
	Parameters: map[string]Param{
		"file_path": {
			Type:        "string",
			Description: "Path to the file to read",
			Required:    true,
		},
	},
}

type fileReaderArgs struct {
	FilePath string `json:"file_path"`
}

func (a *fileReaderArgs) validate() error {
	if a.FilePath == "" {
		return errors.New("file_path is required")
	}
	return nil
}

func readFile(_ context.Context, args fileReaderArgs) (string, error) {
	data, err := os.ReadFile(args.FilePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "Error: File not found: " + args.FilePath, nil
		}
		return "Error reading file: " + err.Error(), nil
	}
	return string(data), nil
}
