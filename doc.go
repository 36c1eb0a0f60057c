// Package likemod loads and unloads Linux kernel modules through the
// finit_module(2) and delete_module(2) syscalls.
//
// Modules are loaded from an open file descriptor, with optional typed
// parameters, and removed by name either synchronously or through a
// rate-limited polling task that retries while the module is still in use.
//
// # API Model
//
// likemod exposes three API families:
//   - [Loader] and [Unloader] for the privileged operations themselves
//   - [UnloadTask] for asynchronous removal of busy modules
//   - [Check]/[Probe]/[Inspect]/[ReadModInfo] for readiness validation
//     and diagnostics around those operations
//
// Loaders and unloaders are plain values configured with chained setters.
// Each setter returns a modified copy, so a configured value can be reused
// as a template.
//
// # Loading
//
//	f, err := os.Open("/lib/modules/6.8.0/extra/hello.ko")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer f.Close()
//
//	params := likemod.Params{}.
//	    Set("debug", likemod.Bool(true)).
//	    Set("ports", likemod.Array{likemod.Int(80), likemod.Int(443)})
//
//	err = likemod.NewLoader().WithParams(params).LoadFile(f)
//	if errors.Is(err, unix.EEXIST) {
//	    // already resident
//	}
//
// # Unloading
//
// A blocking unload returns EWOULDBLOCK immediately when the module is
// in use. [Unloader.UnloadAsync] keeps retrying at a fixed interval until
// the removal succeeds, fails for another reason, or the context ends:
//
//	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
//	defer cancel()
//	err := likemod.NewUnloader().UnloadAsync(ctx, "hello", 500*time.Millisecond)
//
// # Errors
//
// Failed syscalls are reported as [*SysError], which carries the raw errno
// and unwraps to it. Readiness failures from [Check] are [*FeatureError]
// values with operator-facing remediation text.
//
// # Readiness
//
// Validate that the kernel and the process can load modules at all:
//
//	if err := likemod.Check(likemod.LoadRequirements); err != nil {
//	    var fe *likemod.FeatureError
//	    if errors.As(err, &fe) {
//	        log.Fatalf("kernel not ready: %s: %s", fe.Feature, fe.Reason)
//	    }
//	    log.Fatal(err)
//	}
//
// [RequirementsFromImage] derives the same requirements from a module
// image, adding the kernel release recorded in its vermagic.
package likemod
