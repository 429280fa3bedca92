// Package files provides local file and folder automation: create, read,
// write, append, move, copy, rename, delete and listing.
package files

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mcravo/ava/internal/automation"
)

// Module implements automation.Module for local file operations. Relative
// paths are resolved under root; absolute paths are used as given.
type Module struct {
	root string
}

// New creates a files Module rooted at root. An empty root defaults to the
// user's home directory.
func New(root string) (*Module, error) {
	if root == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolving home directory: %w", err)
		}
		root = home
	}
	return &Module{root: root}, nil
}

func (m *Module) Description() string {
	return "manage local files and folders (list, create, read, write, move, copy, rename, delete)"
}

func (m *Module) Actions() map[string]automation.Action {
	return map[string]automation.Action{
		"create_folder": {
			Handler:     automation.Typed(m.createFolder),
			Description: "Creates a new folder at the specified path.",
			Example:     `{"action":"create_folder","folder":"DIRECTORY"}`,
		},
		"create_file": {
			Handler:     automation.Typed(m.createFile),
			Description: "Creates a new empty file at the specified path.",
			Example:     `{"action":"create_file","filename":"DIRECTORY/FILENAME"}`,
		},
		"write_file": {
			Handler:     automation.Typed(m.writeFile),
			Description: "Writes content to a file, creating it if it doesn't exist. Overwrites existing content.",
			Example:     `{"action":"write_file","filename":"myfile.txt","content":"Hello World"}`,
		},
		"append_file": {
			Handler:     automation.Typed(m.appendFile),
			Description: "Appends content to an existing file. If the file does not exist, it will be created.",
			Example:     `{"action":"append_file","filename":"mylog.txt","content":"New log entry."}`,
		},
		"read_file": {
			Handler:     automation.Typed(m.readFile),
			Description: "Reads and returns the text content of a specified file.",
			Example:     `{"action":"read_file","filename":"my_document.txt"}`,
		},
		"delete_file": {
			Handler:     automation.Typed(m.deleteFile),
			Description: "Deletes a file.",
			Example:     `{"action":"delete_file","filename":"FILENAME"}`,
		},
		"delete_folder": {
			Handler:     automation.Typed(m.deleteFolder),
			Description: "Deletes a folder and its contents.",
			Example:     `{"action":"delete_folder","folder":"DIRECTORY"}`,
		},
		"list_directory": {
			Handler:     automation.Typed(m.listDirectory),
			Description: "Lists the contents (files and subfolders) of a specified directory.",
			Example:     `{"action":"list_directory","directory":"my_folder"}`,
		},
		"rename_file": {
			Handler:     automation.Typed(m.renameFile),
			Description: "Renames a file.",
			Example:     `{"action":"rename_file","src":"old_name.txt","dest":"new_name.txt"}`,
		},
		"copy_file": {
			Handler:     automation.Typed(m.copyFile),
			Description: "Copies a file from source to destination.",
			Example:     `{"action":"copy_file","src":"source.txt","dest":"destination/copy.txt"}`,
		},
		"move_file": {
			Handler:     automation.Typed(m.moveFile),
			Description: "Moves a file from source to destination.",
			Example:     `{"action":"move_file","src":"source.txt","dest":"destination/moved.txt"}`,
		},
	}
}

func (m *Module) resolve(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(m.root, path)
}

type folderRequest struct {
	Folder string `mapstructure:"folder"`
}

func (r folderRequest) Validate() error {
	if r.Folder == "" {
		return errors.New("folder is required")
	}
	return nil
}

type fileRequest struct {
	Filename string `mapstructure:"filename"`
}

func (r fileRequest) Validate() error {
	if r.Filename == "" {
		return errors.New("filename is required")
	}
	return nil
}

type writeRequest struct {
	Filename string `mapstructure:"filename"`
	Content  string `mapstructure:"content"`
}

func (r writeRequest) Validate() error {
	if r.Filename == "" {
		return errors.New("filename is required")
	}
	return nil
}

type listRequest struct {
	Directory string `mapstructure:"directory"`
}

func (r listRequest) Validate() error {
	if r.Directory == "" {
		return errors.New("directory is required")
	}
	return nil
}

type srcDestRequest struct {
	Src  string `mapstructure:"src"`
	Dest string `mapstructure:"dest"`
}

func (r srcDestRequest) Validate() error {
	if r.Src == "" || r.Dest == "" {
		return errors.New("src and dest are required")
	}
	return nil
}

func (m *Module) createFolder(ctx context.Context, req folderRequest) (automation.Result, error) {
	path := m.resolve(req.Folder)
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return automation.OK(fmt.Sprintf("Folder already exists: %s", req.Folder)), nil
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return automation.Result{}, fmt.Errorf("creating folder %q: %w", req.Folder, err)
	}
	return automation.OKResource(fmt.Sprintf("Folder created: %s", req.Folder), req.Folder), nil
}

func (m *Module) createFile(ctx context.Context, req fileRequest) (automation.Result, error) {
	path := m.resolve(req.Filename)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, os.ErrExist) {
		return automation.OK(fmt.Sprintf("File already exists: %s", req.Filename)), nil
	}
	if err != nil {
		return automation.Result{}, fmt.Errorf("creating file %q: %w", req.Filename, err)
	}
	if err := f.Close(); err != nil {
		return automation.Result{}, fmt.Errorf("closing file %q: %w", req.Filename, err)
	}
	return automation.OKResource(fmt.Sprintf("File created: %s", req.Filename), req.Filename), nil
}

func (m *Module) writeFile(ctx context.Context, req writeRequest) (automation.Result, error) {
	path := m.resolve(req.Filename)
	if err := os.WriteFile(path, []byte(req.Content), 0o644); err != nil {
		return automation.Result{}, fmt.Errorf("writing file %q: %w", req.Filename, err)
	}
	return automation.OKResource(fmt.Sprintf("File written: %s", req.Filename), req.Filename), nil
}

func (m *Module) appendFile(ctx context.Context, req writeRequest) (automation.Result, error) {
	path := m.resolve(req.Filename)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return automation.Result{}, fmt.Errorf("opening file %q for append: %w", req.Filename, err)
	}
	defer f.Close()
	if _, err := f.WriteString(req.Content); err != nil {
		return automation.Result{}, fmt.Errorf("appending to file %q: %w", req.Filename, err)
	}
	return automation.OKResource(fmt.Sprintf("Content appended to file: %s", req.Filename), req.Filename), nil
}

func (m *Module) readFile(ctx context.Context, req fileRequest) (automation.Result, error) {
	path := m.resolve(req.Filename)
	info, err := os.Stat(path)
	if err != nil {
		return automation.Result{}, fmt.Errorf("file %q does not exist: %w", req.Filename, err)
	}
	if info.IsDir() {
		return automation.Result{}, fmt.Errorf("path %q is not a file", req.Filename)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return automation.Result{}, fmt.Errorf("reading file %q: %w", req.Filename, err)
	}
	msg := fmt.Sprintf("Content of '%s':\n---\n%s\n---", req.Filename, string(content))
	return automation.OKResource(msg, req.Filename), nil
}

func (m *Module) deleteFile(ctx context.Context, req fileRequest) (automation.Result, error) {
	path := m.resolve(req.Filename)
	if err := os.Remove(path); err != nil {
		return automation.Result{}, fmt.Errorf("deleting file %q: %w", req.Filename, err)
	}
	return automation.OKResource(fmt.Sprintf("File deleted: %s", req.Filename), req.Filename), nil
}

func (m *Module) deleteFolder(ctx context.Context, req folderRequest) (automation.Result, error) {
	path := m.resolve(req.Folder)
	info, err := os.Stat(path)
	if err != nil {
		return automation.Result{}, fmt.Errorf("folder %q does not exist: %w", req.Folder, err)
	}
	if !info.IsDir() {
		return automation.Result{}, fmt.Errorf("path %q is not a folder", req.Folder)
	}
	if err := os.RemoveAll(path); err != nil {
		return automation.Result{}, fmt.Errorf("deleting folder %q: %w", req.Folder, err)
	}
	return automation.OKResource(fmt.Sprintf("Folder deleted: %s", req.Folder), req.Folder), nil
}

func (m *Module) listDirectory(ctx context.Context, req listRequest) (automation.Result, error) {
	path := m.resolve(req.Directory)
	entries, err := os.ReadDir(path)
	if err != nil {
		return automation.Result{}, fmt.Errorf("listing directory %q: %w", req.Directory, err)
	}
	if len(entries) == 0 {
		return automation.OK("<empty>"), nil
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			name += string(os.PathSeparator)
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return automation.OK(strings.Join(names, "\n")), nil
}

func (m *Module) renameFile(ctx context.Context, req srcDestRequest) (automation.Result, error) {
	if err := os.Rename(m.resolve(req.Src), m.resolve(req.Dest)); err != nil {
		return automation.Result{}, fmt.Errorf("renaming %q to %q: %w", req.Src, req.Dest, err)
	}
	return automation.OKResource(fmt.Sprintf("File renamed: %s -> %s", req.Src, req.Dest), req.Dest), nil
}

func (m *Module) copyFile(ctx context.Context, req srcDestRequest) (automation.Result, error) {
	if err := copyContents(m.resolve(req.Src), m.resolve(req.Dest)); err != nil {
		return automation.Result{}, fmt.Errorf("copying %q to %q: %w", req.Src, req.Dest, err)
	}
	return automation.OKResource(fmt.Sprintf("File copied: %s -> %s", req.Src, req.Dest), req.Dest), nil
}

func (m *Module) moveFile(ctx context.Context, req srcDestRequest) (automation.Result, error) {
	src, dest := m.resolve(req.Src), m.resolve(req.Dest)
	if err := os.Rename(src, dest); err != nil {
		// Cross-device moves fall back to copy + remove.
		if copyErr := copyContents(src, dest); copyErr != nil {
			return automation.Result{}, fmt.Errorf("moving %q to %q: %w", req.Src, req.Dest, copyErr)
		}
		if rmErr := os.Remove(src); rmErr != nil {
			return automation.Result{}, fmt.Errorf("removing source %q after move: %w", req.Src, rmErr)
		}
	}
	return automation.OKResource(fmt.Sprintf("File moved: %s -> %s", req.Src, req.Dest), req.Dest), nil
}

func copyContents(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
