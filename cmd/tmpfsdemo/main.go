// Copyright 2024 The Tmpfscore Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command tmpfsdemo mounts a tmpfs Superblock and drives a handful of
// operations against it end to end, the way a real VFS caller would. It
// exists purely as ambient CLI tooling exercising pkg/tmpfs; the core
// filesystem itself takes no CLI flags or environment variables.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"

	"github.com/tmpfscore/tmpfs/pkg/tmpfs"
)

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(&treeCommand{}, "")
	subcommands.Register(&writeReadCommand{}, "")

	flag.Parse()
	logrus.SetLevel(logrus.InfoLevel)
	os.Exit(int(subcommands.Execute(context.Background())))
}

// treeCommand mirrors spec.md scenario S4: mkdir a few entries and a
// symlink, then list the root via a DirectoryFile.
type treeCommand struct{}

func (*treeCommand) Name() string     { return "tree" }
func (*treeCommand) Synopsis() string { return "build a small tree and list it" }
func (*treeCommand) Usage() string    { return "tree\n" }
func (*treeCommand) SetFlags(*flag.FlagSet) {}

func (*treeCommand) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	sb := tmpfs.NewSuperblock(tmpfs.DefaultOptions())
	root := sb.CreateRoot()
	rootDir := root.Target().(*tmpfs.DirectoryNode)

	if _, err := rootDir.Mkdir("a"); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	if _, err := rootDir.Mkdir("b"); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	rootDir.Symlink("c", "/tmp")

	df := rootDir.Open(ctx, root, tmpfs.OpenFlags{Read: true})
	defer df.Close()

	var names []string
	for {
		name, ok := df.ReadEntries()
		if !ok {
			break
		}
		names = append(names, name)
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Println(n)
	}
	return subcommands.ExitSuccess
}

// writeReadCommand mirrors spec.md scenario S2: write then read back a
// regular file.
type writeReadCommand struct {
	payload string
}

func (*writeReadCommand) Name() string     { return "write-read" }
func (*writeReadCommand) Synopsis() string { return "write a payload to a regular file, then read it back" }
func (*writeReadCommand) Usage() string    { return "write-read [-payload text]\n" }

func (c *writeReadCommand) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.payload, "payload", "hello world", "bytes to write")
}

func (c *writeReadCommand) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	sb := tmpfs.NewSuperblock(tmpfs.DefaultOptions())
	node := sb.CreateRegular()

	rf := node.Open(ctx, tmpfs.NewUnlinkedLink(node), tmpfs.OpenFlags{Read: true, Write: true})
	defer rf.Close()

	if err := rf.WriteAll([]byte(c.payload)); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	rf.Seek(0, tmpfs.Absolute)
	buf := make([]byte, len(c.payload)+16)
	n := rf.ReadSome(buf)
	fmt.Printf("%s (%d bytes, area_size=%d)\n", buf[:n], n, node.AreaSize())
	return subcommands.ExitSuccess
}
