package backup_test

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/temirov/gitbackup/internal/archive"
	"github.com/temirov/gitbackup/internal/backup"
	"github.com/temirov/gitbackup/internal/execshell"
	"github.com/temirov/gitbackup/internal/filesystem"
	"github.com/temirov/gitbackup/internal/gitrepo"
)

func requireExecutables(testInstance *testing.T, executables ...string) {
	testInstance.Helper()
	for _, executable := range executables {
		if _, lookupError := exec.LookPath(executable); lookupError != nil {
			testInstance.Skipf("%s not available: %v", executable, lookupError)
		}
	}
}

func isolateGitEnvironment(testInstance *testing.T) {
	testInstance.Helper()
	testInstance.Setenv("HOME", testInstance.TempDir())
	testInstance.Setenv("XDG_CONFIG_HOME", testInstance.TempDir())
	testInstance.Setenv("GIT_CONFIG_NOSYSTEM", "1")
	testInstance.Setenv("GIT_AUTHOR_NAME", "Backup Tester")
	testInstance.Setenv("GIT_AUTHOR_EMAIL", "tester@example.com")
	testInstance.Setenv("GIT_COMMITTER_NAME", "Backup Tester")
	testInstance.Setenv("GIT_COMMITTER_EMAIL", "tester@example.com")
}

func runGit(testInstance *testing.T, workingDirectory string, arguments ...string) string {
	testInstance.Helper()
	command := exec.Command("git", arguments...)
	command.Dir = workingDirectory
	output, runError := command.CombinedOutput()
	require.NoError(testInstance, runError, "git %s: %s", strings.Join(arguments, " "), string(output))
	return string(output)
}

func writeFile(testInstance *testing.T, path string, contents string) {
	testInstance.Helper()
	require.NoError(testInstance, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(testInstance, os.WriteFile(path, []byte(contents), 0o644))
}

func initRepository(testInstance *testing.T, repositoryPath string) {
	testInstance.Helper()
	require.NoError(testInstance, os.MkdirAll(repositoryPath, 0o755))
	runGit(testInstance, repositoryPath, "init", "--quiet")
	runGit(testInstance, repositoryPath, "symbolic-ref", "HEAD", "refs/heads/master")
}

func newIntegrationService(testInstance *testing.T, features backup.Features) *backup.Service {
	testInstance.Helper()
	executor, executorError := execshell.NewShellExecutor(zap.NewNop(), execshell.NewOSCommandRunner())
	require.NoError(testInstance, executorError)
	repositoryManager, managerError := gitrepo.NewRepositoryManager(executor)
	require.NoError(testInstance, managerError)
	archiver, archiverError := archive.NewArchiver(executor)
	require.NoError(testInstance, archiverError)
	fileSystem := filesystem.NewOSFileSystem()

	service, serviceError := backup.NewService(backup.ServiceDependencies{
		Logger:     zap.NewNop(),
		Repository: repositoryManager,
		Archiver:   archiver,
		FileSystem: fileSystem,
		Baselines:  backup.NewBaselineSource(zap.NewNop(), repositoryManager, fileSystem.Afero(), ""),
	}, backup.Options{Features: features})
	require.NoError(testInstance, serviceError)
	return service
}

func TestCaptureRealRepositoryWithRemote(testInstance *testing.T) {
	requireExecutables(testInstance, "git", "tar")
	isolateGitEnvironment(testInstance)

	workspace := testInstance.TempDir()
	remotePath := filepath.Join(workspace, "remote.git")
	repositoryPath := filepath.Join(workspace, "work")
	outputDirectory := filepath.Join(workspace, "stage")

	runGit(testInstance, workspace, "init", "--quiet", "--bare", remotePath)
	initRepository(testInstance, repositoryPath)
	writeFile(testInstance, filepath.Join(repositoryPath, "tracked.txt"), "one\n")
	runGit(testInstance, repositoryPath, "add", "tracked.txt")
	runGit(testInstance, repositoryPath, "commit", "--quiet", "-m", "initial")
	runGit(testInstance, repositoryPath, "remote", "add", "origin", remotePath)
	runGit(testInstance, repositoryPath, "push", "--quiet", "-u", "origin", "master")

	writeFile(testInstance, filepath.Join(repositoryPath, "tracked.txt"), "two\n")
	runGit(testInstance, repositoryPath, "commit", "--quiet", "-am", "local")

	writeFile(testInstance, filepath.Join(repositoryPath, "tracked.txt"), "stashed\n")
	runGit(testInstance, repositoryPath, "stash", "--quiet")

	writeFile(testInstance, filepath.Join(repositoryPath, "staged.txt"), "staged\n")
	runGit(testInstance, repositoryPath, "add", "staged.txt")
	writeFile(testInstance, filepath.Join(repositoryPath, "tracked.txt"), "unstaged\n")
	writeFile(testInstance, filepath.Join(repositoryPath, "notes", "untracked.txt"), "untracked\n")

	service := newIntegrationService(testInstance, backup.DefaultFeatures().WithFeature(backup.FeatureUntracked, true))
	result, captureError := service.Capture(context.Background(), repositoryPath, outputDirectory)
	require.NoError(testInstance, captureError)
	require.Equal(testInstance, backup.CaptureModeDelta, result.Mode)

	require.FileExists(testInstance, filepath.Join(outputDirectory, ".git", "config"))
	require.FileExists(testInstance, filepath.Join(outputDirectory, "master", "0001-local.patch"))
	require.FileExists(testInstance, filepath.Join(outputDirectory, "untracked.tar"))

	cachedPatch, cachedError := os.ReadFile(filepath.Join(outputDirectory, "cached_changes.patch"))
	require.NoError(testInstance, cachedError)
	require.Contains(testInstance, string(cachedPatch), "staged.txt")

	changesPatch, changesError := os.ReadFile(filepath.Join(outputDirectory, "changes.patch"))
	require.NoError(testInstance, changesError)
	require.Contains(testInstance, string(changesPatch), "+unstaged")

	entries, listError := os.ReadDir(outputDirectory)
	require.NoError(testInstance, listError)
	stashFiles := 0
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), "stash@{0}") {
			stashFiles++
		}
	}
	require.Equal(testInstance, 1, stashFiles)
}

func TestCaptureRealRepositoryWithoutRemote(testInstance *testing.T) {
	requireExecutables(testInstance, "git")
	isolateGitEnvironment(testInstance)

	workspace := testInstance.TempDir()
	repositoryPath := filepath.Join(workspace, "solo")
	outputDirectory := filepath.Join(workspace, "stage")

	initRepository(testInstance, repositoryPath)
	writeFile(testInstance, filepath.Join(repositoryPath, "main.go"), "package main\n")
	runGit(testInstance, repositoryPath, "add", "main.go")
	runGit(testInstance, repositoryPath, "commit", "--quiet", "-m", "initial")
	writeFile(testInstance, filepath.Join(repositoryPath, "scratch.txt"), "work in progress\n")

	service := newIntegrationService(testInstance, backup.DefaultFeatures())
	result, captureError := service.Capture(context.Background(), repositoryPath, outputDirectory)
	require.NoError(testInstance, captureError)
	require.Equal(testInstance, backup.CaptureModeFullCopy, result.Mode)

	require.FileExists(testInstance, filepath.Join(outputDirectory, "main.go"))
	require.FileExists(testInstance, filepath.Join(outputDirectory, "scratch.txt"))
	log := runGit(testInstance, outputDirectory, "log", "--format=%s")
	require.Equal(testInstance, "initial\n", log)
}

func TestCaptureRealRepositoryWithoutRemotePrunesStaleUnreachableObjects(testInstance *testing.T) {
	requireExecutables(testInstance, "git")
	isolateGitEnvironment(testInstance)

	workspace := testInstance.TempDir()
	repositoryPath := filepath.Join(workspace, "solo")
	outputDirectory := filepath.Join(workspace, "stage")

	initRepository(testInstance, repositoryPath)
	writeFile(testInstance, filepath.Join(repositoryPath, "main.go"), "package main\n")
	runGit(testInstance, repositoryPath, "add", "main.go")
	runGit(testInstance, repositoryPath, "commit", "--quiet", "-m", "initial")

	writeFile(testInstance, filepath.Join(workspace, "stale.txt"), "abandoned last week\n")
	staleObject := strings.TrimSpace(runGit(testInstance, repositoryPath, "hash-object", "-w", filepath.Join(workspace, "stale.txt")))
	writeFile(testInstance, filepath.Join(workspace, "fresh.txt"), "abandoned a moment ago\n")
	freshObject := strings.TrimSpace(runGit(testInstance, repositoryPath, "hash-object", "-w", filepath.Join(workspace, "fresh.txt")))

	staleObjectPath := filepath.Join(repositoryPath, ".git", "objects", staleObject[:2], staleObject[2:])
	staleTime := time.Now().Add(-72 * time.Hour)
	require.NoError(testInstance, os.Chtimes(staleObjectPath, staleTime, staleTime))

	service := newIntegrationService(testInstance, backup.DefaultFeatures())
	result, captureError := service.Capture(context.Background(), repositoryPath, outputDirectory)
	require.NoError(testInstance, captureError)
	require.Equal(testInstance, backup.CaptureModeFullCopy, result.Mode)

	require.False(testInstance, objectExists(outputDirectory, staleObject), "stale unreachable object survived gc")
	require.True(testInstance, objectExists(outputDirectory, freshObject), "recent unreachable object was pruned")
	require.True(testInstance, objectExists(repositoryPath, staleObject), "source repository was modified")
}

func TestCaptureRealBranchWithoutUpstreamOrMasterProducesNoPatches(testInstance *testing.T) {
	requireExecutables(testInstance, "git")
	isolateGitEnvironment(testInstance)

	workspace := testInstance.TempDir()
	remotePath := filepath.Join(workspace, "remote.git")
	repositoryPath := filepath.Join(workspace, "work")
	outputDirectory := filepath.Join(workspace, "stage")

	runGit(testInstance, workspace, "init", "--quiet", "--bare", remotePath)
	require.NoError(testInstance, os.MkdirAll(repositoryPath, 0o755))
	runGit(testInstance, repositoryPath, "init", "--quiet")
	runGit(testInstance, repositoryPath, "symbolic-ref", "HEAD", "refs/heads/trunk")
	writeFile(testInstance, filepath.Join(repositoryPath, "main.go"), "package main\n")
	runGit(testInstance, repositoryPath, "add", "main.go")
	runGit(testInstance, repositoryPath, "commit", "--quiet", "-m", "initial")
	runGit(testInstance, repositoryPath, "remote", "add", "origin", remotePath)

	service := newIntegrationService(testInstance, backup.DefaultFeatures())
	result, captureError := service.Capture(context.Background(), repositoryPath, outputDirectory)
	require.NoError(testInstance, captureError)
	require.Equal(testInstance, backup.CaptureModeDelta, result.Mode)

	require.NoDirExists(testInstance, filepath.Join(outputDirectory, "trunk"))
	require.NoDirExists(testInstance, filepath.Join(outputDirectory, "master"))
	require.FileExists(testInstance, filepath.Join(outputDirectory, ".git", "config"))
}

func TestCaptureRealUnchangedSubmoduleIsPrunedWithEmptyAncestors(testInstance *testing.T) {
	requireExecutables(testInstance, "git")
	isolateGitEnvironment(testInstance)

	workspace := testInstance.TempDir()
	submoduleRemotePath := filepath.Join(workspace, "lib.git")
	seedPath := filepath.Join(workspace, "seed")
	parentRemotePath := filepath.Join(workspace, "parent.git")
	repositoryPath := filepath.Join(workspace, "work")
	outputDirectory := filepath.Join(workspace, "stage")

	runGit(testInstance, workspace, "init", "--quiet", "--bare", submoduleRemotePath)
	runGit(testInstance, submoduleRemotePath, "symbolic-ref", "HEAD", "refs/heads/master")
	initRepository(testInstance, seedPath)
	writeFile(testInstance, filepath.Join(seedPath, "lib.go"), "package lib\n")
	runGit(testInstance, seedPath, "add", "lib.go")
	runGit(testInstance, seedPath, "commit", "--quiet", "-m", "library")
	runGit(testInstance, seedPath, "remote", "add", "origin", submoduleRemotePath)
	runGit(testInstance, seedPath, "push", "--quiet", "origin", "master")

	runGit(testInstance, workspace, "init", "--quiet", "--bare", parentRemotePath)
	initRepository(testInstance, repositoryPath)
	writeFile(testInstance, filepath.Join(repositoryPath, "main.go"), "package main\n")
	runGit(testInstance, repositoryPath, "add", "main.go")
	runGit(testInstance, repositoryPath, "commit", "--quiet", "-m", "initial")
	runGit(testInstance, repositoryPath, "remote", "add", "origin", parentRemotePath)
	runGit(testInstance, repositoryPath, "-c", "protocol.file.allow=always", "submodule", "add", "--quiet", submoduleRemotePath, "vendor/lib")
	runGit(testInstance, repositoryPath, "commit", "--quiet", "-m", "add library")

	service := newIntegrationService(testInstance, backup.DefaultFeatures().WithFeature(backup.FeatureSubmodules, true))
	result, captureError := service.Capture(context.Background(), repositoryPath, outputDirectory)
	require.NoError(testInstance, captureError)

	require.Len(testInstance, result.Submodules, 1)
	require.True(testInstance, result.Submodules[0].Trivial)
	require.NoDirExists(testInstance, filepath.Join(outputDirectory, "vendor", "lib"))
	require.NoDirExists(testInstance, filepath.Join(outputDirectory, "vendor"))
	require.FileExists(testInstance, filepath.Join(outputDirectory, ".git", "config"))
}

func objectExists(repositoryPath string, objectName string) bool {
	command := exec.Command("git", "cat-file", "-e", objectName)
	command.Dir = repositoryPath
	return command.Run() == nil
}

func TestCaptureRealDirectoryThatIsNotARepository(testInstance *testing.T) {
	requireExecutables(testInstance, "git")
	isolateGitEnvironment(testInstance)
	testInstance.Setenv("GIT_CEILING_DIRECTORIES", os.TempDir())

	service := newIntegrationService(testInstance, backup.DefaultFeatures())
	_, captureError := service.Capture(context.Background(), testInstance.TempDir(), filepath.Join(testInstance.TempDir(), "stage"))
	require.ErrorIs(testInstance, captureError, backup.ErrInvalidRepository)
}

func TestCaptureRealSubdirectoryOfWorkTreeIsRejected(testInstance *testing.T) {
	requireExecutables(testInstance, "git")
	isolateGitEnvironment(testInstance)

	workspace := testInstance.TempDir()
	repositoryPath := filepath.Join(workspace, "solo")
	initRepository(testInstance, repositoryPath)
	writeFile(testInstance, filepath.Join(repositoryPath, "docs", "guide.md"), "# guide\n")
	runGit(testInstance, repositoryPath, "add", "docs/guide.md")
	runGit(testInstance, repositoryPath, "commit", "--quiet", "-m", "docs")

	outputDirectory := filepath.Join(workspace, "stage")
	service := newIntegrationService(testInstance, backup.DefaultFeatures())
	_, captureError := service.Capture(context.Background(), filepath.Join(repositoryPath, "docs"), outputDirectory)
	require.ErrorIs(testInstance, captureError, backup.ErrInvalidRepository)
	require.NoDirExists(testInstance, outputDirectory)
}
