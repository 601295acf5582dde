// Corvus CLI - builds, inspects, and indexes symbol worlds.
package main

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"

	"github.com/chazu/corvus/hostload"
	"github.com/chazu/corvus/manifest"
	"github.com/chazu/corvus/pickle"
	"github.com/chazu/corvus/sema"
	"github.com/chazu/corvus/symdex"

	_ "github.com/tliron/commonlog/simple"
)

const version = "0.1.0"

var verbosity int

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "corvus",
		Short: "Corvus symbol engine",
		Long: `Corvus is the semantic core of the Corvus class language: packages,
classes, modules, and their members, elaborated lazily and sealed into
symbol pickles (.cvp files).

The CLI assembles worlds from pickles and host Go packages, inspects
them, and records them in a queryable symbol index.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			commonlog.Configure(verbosity, nil)
		},
	}

	cmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase log verbosity")

	cmd.AddCommand(versionCmd(), pickleCmd(), inspectCmd(), indexCmd(), hostloadCmd())
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("corvus version %s\n", version)
		},
	}
}

// ---------------------------------------------------------------------------
// corvus pickle
// ---------------------------------------------------------------------------

func pickleCmd() *cobra.Command {
	var projectDir string
	var out string
	var hosts []string

	cmd := &cobra.Command{
		Use:   "pickle",
		Short: "Build a project's symbol pickle",
		Long: `Resolves the project's dependencies, loads their pickles and any host
packages into a fresh world, and seals the project's namespace as a
pickle at the path configured in corvus.toml.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPickle(projectDir, out, hosts)
		},
	}

	cmd.Flags().StringVarP(&projectDir, "project", "p", ".", "Directory to locate corvus.toml from")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output path (default from corvus.toml)")
	cmd.Flags().StringArrayVar(&hosts, "host", nil, "Additional host package to mirror (repeatable)")
	return cmd
}

func runPickle(projectDir, out string, hosts []string) error {
	m, err := manifest.FindAndLoad(projectDir)
	if err != nil {
		return err
	}
	if m == nil {
		return fmt.Errorf("no corvus.toml found from %s upward", projectDir)
	}
	if verbosity == 0 && m.Engine.Verbosity > 0 {
		commonlog.Configure(m.Engine.Verbosity, nil)
	}

	rep := &sema.StoreReporter{}
	ctx := sema.NewContext(sema.WithReporter(rep), sema.WithSettings(m.EngineSettings()))

	deps, err := manifest.NewResolver(m).Resolve()
	if err != nil {
		return err
	}
	for _, dep := range deps {
		f, err := pickle.ReadFile(dep.PicklePath)
		if err != nil {
			return fmt.Errorf("loading dependency %s: %w", dep.Name, err)
		}
		if _, err := pickle.Unpickle(ctx, f, dep.PicklePath); err != nil {
			return fmt.Errorf("loading dependency %s: %w", dep.Name, err)
		}
		fmt.Printf("loaded dependency %s\n", dep.Name)
	}

	hosts = append(append([]string{}, m.Source.Hosts...), hosts...)
	if len(hosts) > 0 {
		loader := hostload.New(ctx)
		for _, h := range hosts {
			pkg, err := loader.Load(h)
			if err != nil {
				return err
			}
			fmt.Printf("mirrored %s as %s\n", h, ctx.SymFullName(pkg))
		}
	}

	var root *sema.Symbol
	switch {
	case m.Project.Namespace != "":
		root = resolveDotted(ctx, m.Project.Namespace)
		if !root.Exists() {
			return fmt.Errorf("namespace %s has no definitions to pickle", m.Project.Namespace)
		}
	case len(hosts) > 0:
		root = resolveDotted(ctx, "go")
	default:
		return fmt.Errorf("nothing to pickle: set project.namespace or [source] hosts in corvus.toml")
	}

	f, err := pickle.Pickle(ctx, root)
	if err != nil {
		return err
	}
	if n := flushDiags(rep); n > 0 {
		return fmt.Errorf("%d problems while building the world", n)
	}

	if out == "" {
		out = m.PickleOutputPath()
	}
	if err := pickle.WriteFile(out, f); err != nil {
		return err
	}
	fmt.Printf("wrote %s (%d definitions)\n", out, len(f.Syms))
	return nil
}

// ---------------------------------------------------------------------------
// corvus inspect
// ---------------------------------------------------------------------------

func inspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <pickle> [path]",
		Short: "Inspect a symbol pickle",
		Long: `Without a path, lists the classes and modules a pickle carries.
With a dotted path (geo.Point, go.strings.Builder), loads the pickle
into a fresh world and prints that definition: its flags, ancestry,
and members.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := pickle.ReadFile(args[0])
			if err != nil {
				return err
			}
			if len(args) == 1 {
				listPickle(args[0], f)
				return nil
			}
			return inspectPath(args[0], f, args[1])
		},
	}
	return cmd
}

// listPickle summarizes a pickle from its wire form alone, without
// installing anything.
func listPickle(path string, f *pickle.File) {
	fmt.Printf("%s: %d definitions, %d names, sealed %x\n",
		path, len(f.Syms), len(f.Names), f.Hash[:8])

	type row struct {
		kind    string
		name    string
		members int
	}
	var rows []row
	externals := 0
	for i := range f.Syms {
		e := &f.Syms[i]
		switch e.Kind {
		case pickle.KindClass:
			rows = append(rows, row{"class", wireFullName(f, pickle.SymRef(i+1)), len(e.Decls)})
		case pickle.KindModule:
			members := 0
			if e.Link != 0 && int(e.Link) <= len(f.Syms) {
				members = len(f.Syms[e.Link-1].Decls)
			}
			rows = append(rows, row{"module", wireFullName(f, pickle.SymRef(i+1)), members})
		case pickle.KindExternal:
			externals++
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].name < rows[j].name })
	for _, r := range rows {
		fmt.Printf("  %-7s %s (%d members)\n", r.kind, r.name, r.members)
	}
	if externals > 0 {
		fmt.Printf("  %d external references\n", externals)
	}
}

// wireFullName rebuilds a dotted full name from wire entries. Refs are
// bounds-checked and the owner walk capped, so a malformed file gets
// described rather than crashed on.
func wireFullName(f *pickle.File, ref pickle.SymRef) string {
	var segs []string
	for hops := 0; ref != 0 && int(ref) <= len(f.Syms) && hops <= len(f.Syms); hops++ {
		e := &f.Syms[ref-1]
		if e.Name != 0 && int(e.Name) <= len(f.Names) {
			segs = append(segs, f.Names[e.Name-1])
		}
		ref = e.Owner
	}
	for i, j := 0, len(segs)-1; i < j; i, j = i+1, j-1 {
		segs[i], segs[j] = segs[j], segs[i]
	}
	return strings.Join(segs, ".")
}

func inspectPath(source string, f *pickle.File, path string) error {
	rep := &sema.StoreReporter{}
	ctx := sema.NewContext(sema.WithReporter(rep))
	if _, err := pickle.Unpickle(ctx, f, source); err != nil {
		return err
	}

	sym := resolveDotted(ctx, path)
	if !sym.Exists() {
		return fmt.Errorf("no definition %s in %s", path, source)
	}

	// Printing forces completion; a cyclic world surfaces here as an
	// error rather than a crash.
	err := sema.CatchCyclic(func() { printSymbol(ctx, sym) })
	flushDiags(rep)
	return err
}

func printSymbol(ctx *sema.Context, sym *sema.Symbol) {
	d := sym.Denot()
	fmt.Println(ctx.SymFullName(sym))
	if fl := d.Flags(ctx).Without(sema.Frozen); fl != 0 {
		fmt.Printf("  flags: %s\n", fl)
	}
	if !sym.IsClass() {
		fmt.Printf("  info: %s\n", typeStr(ctx, d.Info(ctx)))
		return
	}

	cls := sym.Class()
	if tps := cls.TypeParams(ctx); len(tps) > 0 {
		names := make([]string, len(tps))
		for i, tp := range tps {
			names[i] = ctx.SymName(tp)
		}
		fmt.Printf("  type params: %s\n", strings.Join(names, ", "))
	}
	if parents := cls.DirectParents(ctx); len(parents) > 0 {
		strs := make([]string, len(parents))
		for i, p := range parents {
			strs[i] = typeStr(ctx, p)
		}
		fmt.Printf("  extends: %s\n", strings.Join(strs, ", "))
	}
	bases := cls.BaseClasses(ctx)
	baseStrs := make([]string, len(bases))
	for i, b := range bases {
		baseStrs[i] = ctx.SymFullName(b)
	}
	fmt.Printf("  bases: %s\n", strings.Join(baseStrs, ", "))

	decls := cls.Decls(ctx)
	if decls.Len() == 0 {
		return
	}
	fmt.Println("  members:")
	decls.ForEach(func(m *sema.Symbol) {
		md := m.Denot()
		line := "    " + ctx.SymName(m)
		if fl := md.Flags(ctx).Without(sema.Frozen); fl != 0 {
			line += " [" + fl.String() + "]"
		}
		line += " : " + typeStr(ctx, md.Info(ctx))
		fmt.Println(line)
	})
}

// typeStr renders a type for display.
func typeStr(ctx *sema.Context, tp sema.Type) string {
	switch t := tp.(type) {
	case nil:
		return "<none>"
	case *sema.TypeRef:
		return ctx.SymFullName(t.Sym)
	case *sema.ThisType:
		return ctx.SymFullName(t.Cls) + ".this"
	case *sema.AndType:
		return typeStr(ctx, t.Left) + " & " + typeStr(ctx, t.Right)
	case *sema.OrType:
		return typeStr(ctx, t.Left) + " | " + typeStr(ctx, t.Right)
	case *sema.ClassInfo:
		return "class " + ctx.SymFullName(t.Cls)
	case *sema.MethodType:
		params := make([]string, len(t.Params))
		for i, p := range t.Params {
			params[i] = typeStr(ctx, p)
		}
		return "(" + strings.Join(params, ", ") + ") -> " + typeStr(ctx, t.Result)
	case *sema.TypeBounds:
		switch {
		case t.Lo.Exists() && t.Hi.Exists():
			return ">: " + typeStr(ctx, t.Lo) + " <: " + typeStr(ctx, t.Hi)
		case t.Hi.Exists():
			return "<: " + typeStr(ctx, t.Hi)
		case t.Lo.Exists():
			return ">: " + typeStr(ctx, t.Lo)
		default:
			return "<unbounded>"
		}
	case *sema.ErrType:
		return "<error: " + t.Msg + ">"
	default:
		if !tp.Exists() {
			return "<none>"
		}
		return "?"
	}
}

// ---------------------------------------------------------------------------
// corvus index
// ---------------------------------------------------------------------------

func indexCmd() *cobra.Command {
	var dbPath, label string
	var listRuns bool

	cmd := &cobra.Command{
		Use:   "index [pickle...]",
		Short: "Record or list symbol-index snapshots",
		Long: `Loads the given pickles into a fresh world and records one snapshot of
it in the symbol index, forcing any still-pending classes. With --runs,
lists recorded snapshots instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := symdex.Open(dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			if listRuns {
				if len(args) > 0 {
					return fmt.Errorf("--runs takes no pickle arguments")
				}
				return printRuns(store)
			}
			if len(args) == 0 {
				return fmt.Errorf("nothing to index: give pickle files or --runs")
			}

			rep := &sema.StoreReporter{}
			ctx := sema.NewContext(sema.WithReporter(rep))
			for _, path := range args {
				f, err := pickle.ReadFile(path)
				if err != nil {
					return err
				}
				if _, err := pickle.Unpickle(ctx, f, path); err != nil {
					return err
				}
			}

			snap, err := store.Snapshot(ctx, label)
			if err != nil {
				return err
			}
			flushDiags(rep)
			fmt.Printf("recorded snapshot %s (%d classes)\n", snap.ID, snap.Classes)
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "corvus.db", "Symbol index database")
	cmd.Flags().StringVar(&label, "label", "", "Label for the snapshot")
	cmd.Flags().BoolVar(&listRuns, "runs", false, "List recorded snapshots")
	return cmd
}

func printRuns(store *symdex.Store) error {
	runs, err := store.Runs()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no snapshots recorded")
		return nil
	}
	for _, r := range runs {
		label := r.Label
		if label == "" {
			label = "-"
		}
		fmt.Printf("%s  %s  %4d classes  %s\n",
			r.ID[:8], r.CreatedAt.Format(time.RFC3339), r.Classes, label)
	}
	return nil
}

// ---------------------------------------------------------------------------
// corvus hostload
// ---------------------------------------------------------------------------

func hostloadCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "hostload <import-path>...",
		Short: "Mirror Go packages into a symbol world",
		Long: `Loads the given Go packages and mirrors their exported surface as
host classes under the go package. With --out, forces the mirrored
world and writes it as a pickle other projects can depend on.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rep := &sema.StoreReporter{}
			ctx := sema.NewContext(sema.WithReporter(rep))
			loader := hostload.New(ctx)

			for _, path := range args {
				pkg, err := loader.Load(path)
				if err != nil {
					return err
				}
				fmt.Printf("loaded %s as %s (%d definitions)\n",
					path, ctx.SymFullName(pkg), pkg.Class().Decls(ctx).Len())
			}

			if out != "" {
				f, err := pickle.Pickle(ctx, resolveDotted(ctx, "go"))
				if err != nil {
					return err
				}
				if n := flushDiags(rep); n > 0 {
					return fmt.Errorf("%d problems while mirroring", n)
				}
				if err := pickle.WriteFile(out, f); err != nil {
					return err
				}
				fmt.Printf("wrote %s (%d definitions)\n", out, len(f.Syms))
				return nil
			}
			flushDiags(rep)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "Write the mirrored world to a pickle")
	return cmd
}

// ---------------------------------------------------------------------------
// Shared helpers
// ---------------------------------------------------------------------------

// resolveDotted walks a '.'-separated path from the root package. Class
// entries are preferred; a module value resolves to its class half so its
// members are reachable.
func resolveDotted(ctx *sema.Context, path string) *sema.Symbol {
	cur := ctx.Defs().RootPackage
	for _, seg := range strings.Split(path, ".") {
		if !cur.Exists() || !cur.IsClass() {
			return sema.NoSymbol
		}
		name, ok := ctx.Names().Lookup(seg)
		if !ok {
			return sema.NoSymbol
		}
		scope := cur.Class().Decls(ctx)
		next := sema.NoSymbol
		for _, cand := range scope.LookupAll(name) {
			if cand.IsClass() {
				next = cand
				break
			}
		}
		if !next.Exists() {
			if term := scope.Lookup(name); term.Exists() {
				if mc := term.Denot().ModuleClass(); mc.Exists() {
					next = mc
				} else {
					next = term
				}
			}
		}
		if !next.Exists() {
			return sema.NoSymbol
		}
		cur = next
	}
	return cur
}

// flushDiags prints accumulated diagnostics to stderr and returns the
// number of errors among them.
func flushDiags(rep *sema.StoreReporter) int {
	for _, d := range rep.Diags {
		fmt.Fprintln(os.Stderr, d.String())
	}
	return rep.ErrorCount()
}
