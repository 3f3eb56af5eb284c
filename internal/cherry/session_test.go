package cherry_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/shiqiyang-okta/ghpick/internal/cherry"
	gh "github.com/shiqiyang-okta/ghpick/internal/github"
	"github.com/shiqiyang-okta/ghpick/internal/patch"
)

var (
	baseSHA   = strings.Repeat("a", 40)
	targetSHA = strings.Repeat("b", 40)
)

const modifyAndAddDiff = `diff --git a/README.md b/README.md
index 83db48f..bf269f4 100644
--- a/README.md
+++ b/README.md
@@ -1 +1 @@
-old
+new
diff --git a/NewFile.txt b/NewFile.txt
new file mode 100644
index 0000000..3b18e51
--- /dev/null
+++ b/NewFile.txt
@@ -0,0 +1 @@
+hello
`

const deleteOnlyDiff = `diff --git a/DeleteMe.txt b/DeleteMe.txt
deleted file mode 100644
index 3b18e51..0000000
--- a/DeleteMe.txt
+++ /dev/null
@@ -1 +0,0 @@
-bye
`

const deleteNestedDiff = `diff --git a/dir/only.txt b/dir/only.txt
deleted file mode 100644
index 3b18e51..0000000
--- a/dir/only.txt
+++ /dev/null
@@ -1 +0,0 @@
-alone
`

const nestedMixedDiff = `diff --git a/README.md b/README.md
index 83db48f..bf269f4 100644
--- a/README.md
+++ b/README.md
@@ -1 +1 @@
-v1
+v2
diff --git a/file_addition.txt b/file_addition.txt
new file mode 100644
index 0000000..3b18e51
--- /dev/null
+++ b/file_addition.txt
@@ -0,0 +1 @@
+addition
diff --git a/test/nested/mods/and/deletions/mod_me.txt b/test/nested/mods/and/deletions/mod_me.txt
index 83db48f..bf269f4 100644
--- a/test/nested/mods/and/deletions/mod_me.txt
+++ b/test/nested/mods/and/deletions/mod_me.txt
@@ -1 +1 @@
-m1
+m2
diff --git a/test/nested/mods/and/deletions/delete_me.txt b/test/nested/mods/and/deletions/delete_me.txt
deleted file mode 100644
index 3b18e51..0000000
--- a/test/nested/mods/and/deletions/delete_me.txt
+++ /dev/null
@@ -1 +0,0 @@
-bye
`

const executableAddDiff = `diff --git a/tools/run.sh b/tools/run.sh
new file mode 100755
index 0000000..3b18e51
--- /dev/null
+++ b/tools/run.sh
@@ -0,0 +1 @@
+#!/bin/sh
`

var _ = Describe("Picker", func() {
	var (
		ctx    context.Context
		client *fakeClient
	)

	BeforeEach(func() {
		ctx = context.Background()
		client = newFakeClient()
	})

	newPicker := func(applier *fakeApplier) *cherry.Picker {
		picker := cherry.NewPicker(client, applier, nil)
		picker.BaseDir = GinkgoT().TempDir()
		return picker
	}

	writeStaged := func(dir, path, content string) {
		full := filepath.Join(dir, path)
		Expect(os.MkdirAll(filepath.Dir(full), 0o755)).To(Succeed())
		Expect(os.WriteFile(full, []byte(content), 0o644)).To(Succeed())
	}

	Describe("Patch", func() {
		It("parses the diff into ordered change records", func() {
			client.seedBranch("main", map[string]string{"README.md": "old\n"})
			client.patchText = modifyAndAddDiff

			picker := newPicker(&fakeApplier{fn: func(_ context.Context, _, dir string) error {
				writeStaged(dir, "README.md", "new\n")
				writeStaged(dir, "NewFile.txt", "hello\n")
				return nil
			}})

			session, err := picker.Patch(ctx, baseSHA, targetSHA, "main")
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(session.Discard)

			Expect(session.Records).To(Equal([]patch.ChangeRecord{
				{Path: "README.md", Mode: "", Deleted: false},
				{Path: "NewFile.txt", Mode: "100644", Deleted: false},
			}))
		})

		It("stages pre-images from the branch and skips files with none", func() {
			client.seedBranch("main", map[string]string{"README.md": "old\n"})
			client.patchText = modifyAndAddDiff

			picker := newPicker(&fakeApplier{})
			session, err := picker.Prepare(ctx, baseSHA, targetSHA, "main")
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(session.Discard)

			Expect(picker.Stage(ctx, session)).To(Succeed())

			staged, err := os.ReadFile(filepath.Join(session.FilesDir, "README.md"))
			Expect(err).NotTo(HaveOccurred())
			Expect(string(staged)).To(Equal("old\n"))

			// NewFile.txt has no pre-image on the branch; only the patch tool
			// materializes it.
			_, err = os.Stat(filepath.Join(session.FilesDir, "NewFile.txt"))
			Expect(os.IsNotExist(err)).To(BeTrue())
		})

		It("surfaces patch tool rejects as a conflict carrying the tool output", func() {
			client.seedBranch("main", map[string]string{"README.md": "unrelated\n"})
			client.patchText = modifyAndAddDiff

			picker := newPicker(&fakeApplier{fn: func(_ context.Context, _, _ string) error {
				return &patch.ConflictError{Output: "error: patch failed: README.md:1"}
			}})

			session, err := picker.Patch(ctx, baseSHA, targetSHA, "main")
			Expect(err).To(HaveOccurred())
			Expect(session).NotTo(BeNil())
			DeferCleanup(session.Discard)

			var conflict *patch.ConflictError
			Expect(errors.As(err, &conflict)).To(BeTrue())
			Expect(conflict.Output).To(ContainSubstring("patch failed"))

			// Staging survives a conflict so the rejects can be inspected.
			_, statErr := os.Stat(session.StagingDir)
			Expect(statErr).NotTo(HaveOccurred())
		})

		It("recreates the staged files root when a deletion-only patch removes it", func() {
			client.seedBranch("main", map[string]string{"README.md": "readme\n", "DeleteMe.txt": "bye\n"})
			client.patchText = deleteOnlyDiff

			picker := newPicker(&fakeApplier{fn: func(_ context.Context, _, dir string) error {
				return os.RemoveAll(dir)
			}})

			session, err := picker.Patch(ctx, baseSHA, targetSHA, "main")
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(session.Discard)

			info, statErr := os.Stat(session.FilesDir)
			Expect(statErr).NotTo(HaveOccurred())
			Expect(info.IsDir()).To(BeTrue())
		})
	})

	Describe("Commit", func() {
		It("omits deleted paths and leaves the survivors", func() {
			oldHead := client.seedBranch("main", map[string]string{"README.md": "readme\n", "DeleteMe.txt": "bye\n"})
			client.patchText = deleteOnlyDiff

			picker := newPicker(&fakeApplier{fn: func(_ context.Context, _, dir string) error {
				return os.Remove(filepath.Join(dir, "DeleteMe.txt"))
			}})

			session, err := picker.Patch(ctx, baseSHA, targetSHA, "main")
			Expect(err).NotTo(HaveOccurred())

			commit, err := picker.Commit(ctx, session, "")
			Expect(err).NotTo(HaveOccurred())
			Expect(commit.Parents).To(Equal([]string{oldHead}))

			tree, err := client.GetTree(ctx, commit.TreeSHA, false)
			Expect(err).NotTo(HaveOccurred())
			Expect(tree.Entries).To(HaveLen(1))
			Expect(tree.Entries[0].Path).To(Equal("README.md"))

			Expect(client.branches["main"]).To(Equal(commit.SHA))
		})

		It("drops a directory entry once all of its children are deleted", func() {
			client.seedBranch("main", map[string]string{"README.md": "readme\n", "dir/only.txt": "alone\n"})
			client.patchText = deleteNestedDiff

			picker := newPicker(&fakeApplier{fn: func(_ context.Context, _, dir string) error {
				return os.Remove(filepath.Join(dir, "dir", "only.txt"))
			}})

			session, err := picker.Patch(ctx, baseSHA, targetSHA, "main")
			Expect(err).NotTo(HaveOccurred())

			commit, err := picker.Commit(ctx, session, "")
			Expect(err).NotTo(HaveOccurred())

			tree, err := client.GetTree(ctx, commit.TreeSHA, true)
			Expect(err).NotTo(HaveOccurred())

			paths := make([]string, 0, len(tree.Entries))
			for _, entry := range tree.Entries {
				paths = append(paths, entry.Path)
			}
			Expect(paths).To(ConsistOf("README.md"))
		})

		It("synthesizes a nested tree listing exactly the surviving paths", func() {
			client.seedBranch("main", map[string]string{
				"README.md": "v1\n",
				"test/nested/mods/and/deletions/mod_me.txt":    "m1\n",
				"test/nested/mods/and/deletions/delete_me.txt": "bye\n",
			})
			client.patchText = nestedMixedDiff

			picker := newPicker(&fakeApplier{fn: func(_ context.Context, _, dir string) error {
				writeStaged(dir, "README.md", "v2\n")
				writeStaged(dir, "file_addition.txt", "addition\n")
				writeStaged(dir, "test/nested/mods/and/deletions/mod_me.txt", "m2\n")
				return os.Remove(filepath.Join(dir, "test/nested/mods/and/deletions/delete_me.txt"))
			}})

			session, err := picker.Patch(ctx, baseSHA, targetSHA, "main")
			Expect(err).NotTo(HaveOccurred())

			commit, err := picker.Commit(ctx, session, "")
			Expect(err).NotTo(HaveOccurred())

			tree, err := client.GetTree(ctx, commit.TreeSHA, true)
			Expect(err).NotTo(HaveOccurred())

			paths := make([]string, 0, len(tree.Entries))
			for _, entry := range tree.Entries {
				paths = append(paths, entry.Path)
			}
			Expect(paths).To(ConsistOf(
				"README.md",
				"file_addition.txt",
				"test",
				"test/nested",
				"test/nested/mods",
				"test/nested/mods/and",
				"test/nested/mods/and/deletions",
				"test/nested/mods/and/deletions/mod_me.txt",
			))
		})

		It("honors the mode recorded by the diff over the default", func() {
			client.seedBranch("main", map[string]string{"README.md": "readme\n"})
			client.patchText = executableAddDiff

			picker := newPicker(&fakeApplier{fn: func(_ context.Context, _, dir string) error {
				writeStaged(dir, "tools/run.sh", "#!/bin/sh\n")
				return nil
			}})

			session, err := picker.Patch(ctx, baseSHA, targetSHA, "main")
			Expect(err).NotTo(HaveOccurred())

			commit, err := picker.Commit(ctx, session, "")
			Expect(err).NotTo(HaveOccurred())

			tree, err := client.GetTree(ctx, commit.TreeSHA, true)
			Expect(err).NotTo(HaveOccurred())

			modes := make(map[string]string, len(tree.Entries))
			for _, entry := range tree.Entries {
				modes[entry.Path] = entry.Mode
			}
			Expect(modes["tools/run.sh"]).To(Equal("100755"))
			Expect(modes["tools"]).To(Equal("040000"))
		})

		It("defaults the commit message to the cherry-pick range", func() {
			client.seedBranch("main", map[string]string{"README.md": "old\n"})
			client.patchText = modifyAndAddDiff

			picker := newPicker(&fakeApplier{fn: func(_ context.Context, _, dir string) error {
				writeStaged(dir, "README.md", "new\n")
				writeStaged(dir, "NewFile.txt", "hello\n")
				return nil
			}})

			session, err := picker.Patch(ctx, baseSHA, targetSHA, "main")
			Expect(err).NotTo(HaveOccurred())

			commit, err := picker.Commit(ctx, session, "")
			Expect(err).NotTo(HaveOccurred())
			Expect(commit.Message).To(Equal("This is a cherry-pick between " + baseSHA + " and " + targetSHA))
		})

		It("discards the staging directory after a successful commit", func() {
			client.seedBranch("main", map[string]string{"README.md": "old\n"})
			client.patchText = modifyAndAddDiff

			picker := newPicker(&fakeApplier{fn: func(_ context.Context, _, dir string) error {
				writeStaged(dir, "README.md", "new\n")
				writeStaged(dir, "NewFile.txt", "hello\n")
				return nil
			}})

			session, err := picker.Patch(ctx, baseSHA, targetSHA, "main")
			Expect(err).NotTo(HaveOccurred())

			_, err = picker.Commit(ctx, session, "")
			Expect(err).NotTo(HaveOccurred())

			_, statErr := os.Stat(session.StagingDir)
			Expect(os.IsNotExist(statErr)).To(BeTrue())
		})

		It("refuses to move a branch that advanced during synthesis", func() {
			oldHead := client.seedBranch("main", map[string]string{"README.md": "old\n"})
			client.patchText = modifyAndAddDiff

			// Another commit lands on the branch between tree synthesis and
			// the pointer move.
			intruder, err := client.CreateCommit(ctx, "intruder", client.commits[oldHead].TreeSHA, []string{oldHead}, gh.CommitAuthor{})
			Expect(err).NotTo(HaveOccurred())

			picker := newPicker(&fakeApplier{fn: func(_ context.Context, _, dir string) error {
				writeStaged(dir, "README.md", "new\n")
				writeStaged(dir, "NewFile.txt", "hello\n")
				return nil
			}})

			session, err := picker.Patch(ctx, baseSHA, targetSHA, "main")
			Expect(err).NotTo(HaveOccurred())

			client.onCreateCommit = func() {
				client.branches["main"] = intruder.SHA
			}

			_, err = picker.Commit(ctx, session, "")
			var stale *cherry.StaleBranchError
			Expect(errors.As(err, &stale)).To(BeTrue())
			Expect(stale.Expected).To(Equal(oldHead))
			Expect(stale.Actual).To(Equal(intruder.SHA))
			Expect(client.branches["main"]).To(Equal(intruder.SHA))
		})
	})

	Describe("BuildTree", func() {
		It("yields an identical entry set when resynthesized from the same inputs", func() {
			client.seedBranch("main", map[string]string{"README.md": "old\n"})
			client.patchText = modifyAndAddDiff

			picker := newPicker(&fakeApplier{fn: func(_ context.Context, _, dir string) error {
				writeStaged(dir, "README.md", "new\n")
				writeStaged(dir, "NewFile.txt", "hello\n")
				return nil
			}})

			session, err := picker.Patch(ctx, baseSHA, targetSHA, "main")
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(session.Discard)

			remote, err := client.GetTree(ctx, "main", false)
			Expect(err).NotTo(HaveOccurred())

			first, err := picker.BuildTree(ctx, session, remote)
			Expect(err).NotTo(HaveOccurred())

			second, err := picker.BuildTree(ctx, session, remote)
			Expect(err).NotTo(HaveOccurred())

			Expect(second.SHA).To(Equal(first.SHA))
			Expect(second.Entries).To(ConsistOf(first.Entries))
		})
	})
})
