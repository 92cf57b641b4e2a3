package main

import (
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/ndlib/chasm/model"
	"github.com/ndlib/chasm/repository"
	"github.com/ndlib/chasm/util"
)

func runPut(ctx context.Context, repo repository.Repository, out io.Writer, args []string) error {
	flags := pflag.NewFlagSet("put", pflag.ContinueOnError)
	force := flags.BoolP("force", "f", false, "rewrite objects which already exist")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() == 0 {
		return fmt.Errorf("usage: put FILE...")
	}
	var items []repository.ObjectWrite
	for _, name := range flags.Args() {
		content, err := ioutil.ReadFile(name)
		if err != nil {
			return err
		}
		items = append(items, repository.ObjectWrite{
			Content: content,
			Metadata: &model.Metadata{
				ContentType: mime.TypeByExtension(filepath.Ext(name)),
				Filename:    filepath.Base(name),
			},
		})
	}
	ids, err := repo.WriteObjectBatch(ctx, items, *force)
	if err != nil {
		return err
	}
	for i, id := range ids {
		fmt.Fprintf(out, "%s %s\n", id, flags.Arg(i))
	}
	return nil
}

func runCat(ctx context.Context, repo repository.Repository, out io.Writer, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: cat ID")
	}
	id, err := model.ParseSha1(args[0])
	if err != nil {
		return err
	}
	blob, err := repo.ReadObject(ctx, id)
	if err != nil {
		return err
	}
	if blob == nil {
		return fmt.Errorf("no object %s", id)
	}
	_, err = out.Write(blob.Content)
	return err
}

// runHash streams each file through a hash, so large files are not read
// into memory.
func runHash(ctx context.Context, repo repository.Repository, out io.Writer, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: hash FILE...")
	}
	for _, name := range args {
		f, err := os.Open(name)
		if err != nil {
			return err
		}
		hw := util.NewHashWriterPlain()
		_, err = io.Copy(hw, f)
		f.Close()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s %d %s\n", hw.Sum(), hw.Size(), name)
	}
	return nil
}

func runMktree(ctx context.Context, repo repository.Repository, out io.Writer, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: mktree NAME=ID...")
	}
	var m model.TreeNodeMap
	for _, arg := range args {
		i := strings.LastIndexByte(arg, '=')
		if i <= 0 {
			return fmt.Errorf("expected NAME=ID, got %q", arg)
		}
		id, err := model.ParseSha1(arg[i+1:])
		if err != nil {
			return err
		}
		node := model.TreeNode{Name: arg[:i], Kind: model.KindBlob, ID: id}
		if strings.HasSuffix(node.Name, "/") {
			node.Name = strings.TrimSuffix(node.Name, "/")
			node.Kind = model.KindTree
		}
		if err = m.Add(node); err != nil {
			return err
		}
	}
	tid, err := repo.WriteTree(ctx, m)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, tid)
	return nil
}

// runTree lists a tree given its id, a commit id, or a ref.
func runTree(ctx context.Context, repo repository.Repository, out io.Writer, args []string) error {
	flags := pflag.NewFlagSet("tree", pflag.ContinueOnError)
	isCommit := flags.Bool("commit", false, "the id is a commit id")
	if err := flags.Parse(args); err != nil {
		return err
	}
	var m *model.TreeNodeMap
	var err error
	switch flags.NArg() {
	case 1:
		var id model.Sha1
		id, err = model.ParseSha1(flags.Arg(0))
		if err != nil {
			return err
		}
		if *isCommit {
			m, err = repo.ReadTreeForCommit(ctx, model.CommitID(id))
		} else {
			m, err = repo.ReadTree(ctx, model.TreeID(id))
		}
	case 2:
		m, err = repo.ReadTreeForRef(ctx, flags.Arg(0), flags.Arg(1))
	default:
		return fmt.Errorf("usage: tree [--commit] ID | NAME BRANCH")
	}
	if err != nil {
		return err
	}
	if m == nil {
		return fmt.Errorf("no tree found")
	}
	for _, node := range m.Nodes() {
		name := node.Name
		if node.Kind == model.KindTree {
			name += "/"
		}
		fmt.Fprintf(out, "%s %s %s\n", node.Kind, node.ID, name)
	}
	return nil
}

func runCommit(ctx context.Context, repo repository.Repository, out io.Writer, args []string) error {
	flags := pflag.NewFlagSet("commit", pflag.ContinueOnError)
	parents := flags.StringArrayP("parent", "p", nil, "parent commit id (repeatable)")
	author := flags.String("author", os.Getenv("USER"), "author and committer name")
	message := flags.StringP("message", "m", "", "commit message")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() != 1 {
		return fmt.Errorf("usage: commit [--parent ID]... -m MESSAGE TREE-ID")
	}
	tid, err := model.ParseTreeID(flags.Arg(0))
	if err != nil {
		return err
	}
	var pids []model.CommitID
	for _, p := range *parents {
		pid, err := model.ParseCommitID(p)
		if err != nil {
			return err
		}
		pids = append(pids, pid)
	}
	who := model.NewAudit(*author, time.Now())
	cid, err := repo.WriteCommit(ctx, model.NewCommit(pids, tid, who, who, *message))
	if err != nil {
		return err
	}
	fmt.Fprintln(out, cid)
	return nil
}

func runShow(ctx context.Context, repo repository.Repository, out io.Writer, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: show COMMIT-ID")
	}
	cid, err := model.ParseCommitID(args[0])
	if err != nil {
		return err
	}
	c, err := repo.ReadCommit(ctx, cid)
	if err != nil {
		return err
	}
	if c == nil {
		return fmt.Errorf("no commit %s", cid)
	}
	fmt.Fprintf(out, "commit %s\ntree %s\n", c.ID, c.TreeID)
	for _, p := range c.ParentIDs {
		fmt.Fprintf(out, "parent %s\n", p)
	}
	fmt.Fprintf(out, "author %s %s\n", c.Author.Name, c.Author.Timestamp.Format(time.RFC3339))
	fmt.Fprintf(out, "committer %s %s\n\n%s\n", c.Committer.Name, c.Committer.Timestamp.Format(time.RFC3339), c.Message)
	return nil
}

func runRef(ctx context.Context, repo repository.Repository, out io.Writer, args []string) error {
	flags := pflag.NewFlagSet("ref", pflag.ContinueOnError)
	previous := flags.String("previous", "", "commit the ref must currently point at")
	if err := flags.Parse(args); err != nil {
		return err
	}
	switch flags.NArg() {
	case 2:
		ref, err := repo.ReadCommitRef(ctx, flags.Arg(0), flags.Arg(1))
		if err != nil {
			return err
		}
		if ref == nil {
			return fmt.Errorf("no ref %s@%s", flags.Arg(0), flags.Arg(1))
		}
		fmt.Fprintln(out, ref.CommitID)
		return nil
	case 3:
		cid, err := model.ParseCommitID(flags.Arg(2))
		if err != nil {
			return err
		}
		var prev *model.CommitID
		if *previous != "" {
			p, err := model.ParseCommitID(*previous)
			if err != nil {
				return err
			}
			prev = &p
		}
		return repo.WriteCommitRef(ctx, prev, flags.Arg(0), model.NewCommitRef(flags.Arg(1), cid))
	}
	return fmt.Errorf("usage: ref NAME BRANCH [COMMIT-ID [--previous ID]]")
}

func runBranches(ctx context.Context, repo repository.Repository, out io.Writer, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: branches NAME")
	}
	refs, err := repo.GetBranches(ctx, args[0])
	if err != nil {
		return err
	}
	for _, ref := range refs {
		fmt.Fprintf(out, "%s %s\n", ref.CommitID, ref.Branch)
	}
	return nil
}

func runNames(ctx context.Context, repo repository.Repository, out io.Writer, args []string) error {
	names, err := repo.GetNames(ctx)
	if err != nil {
		return err
	}
	for _, name := range names {
		fmt.Fprintln(out, name)
	}
	return nil
}
