// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/slices"
)

// Issue guide identifiers. The zero value means "no guide".
const (
	DescriptorNotFoundID ID = iota + 1
	ActivationFailedID
	IntrospectionFailedID
	ManifestInvalidID
	BuildFailedID
	RelocationFailedID
	ConfigLoadFailedID
)

type (
	// ID identifies a Markdown issue guide.
	ID int

	// MarkdownMsg is Markdown text rendered for the terminal.
	MarkdownMsg string

	// HTTPLink is an external reference shown below a guide.
	HTTPLink string

	// Issue is a Markdown troubleshooting guide for a known failure.
	Issue struct {
		id       ID
		mdMsg    MarkdownMsg
		extLinks []HTTPLink
	}
)

var (
	render = glamour.Render

	descriptorNotFoundIssue = &Issue{
		id: DescriptorNotFoundID,
		mdMsg: `
# No virtual environment found

The activation script of the project's Python environment is missing.
nativeship needs it to know which interpreter the native module is built for.

## Things you can try
- Create the environment at the project root:
~~~
$ python3 -m venv .venv
$ .venv/bin/pip install -r requirements.txt
~~~
- Or point ` + "`environment.descriptor`" + ` in nativeship.cue at an existing activation script.`,
		extLinks: []HTTPLink{"https://docs.python.org/3/library/venv.html"},
	}

	activationFailedIssue = &Issue{
		id: ActivationFailedID,
		mdMsg: `
# The environment could not be activated

The activation script exited with an error or could not be parsed.

## Things you can try
- Source it manually to see the failure:
~~~
$ . .venv/bin/activate
~~~
- Recreate the environment if the interpreter it points to was removed.`,
	}

	introspectionFailedIssue = &Issue{
		id: IntrospectionFailedID,
		mdMsg: `
# The interpreter could not be introspected

One of the queries nativeship runs against the activated interpreter failed,
so the linker configuration for the native module cannot be derived.

## Things you can try
- Check that the interpreter starts:
~~~
$ python -c "import sys, sysconfig, site; print(sys.executable, sysconfig.get_config_var('BINDIR'), site.getsitepackages())"
~~~
- Set ` + "`environment.interpreter`" + ` if the executable is not called "python".`,
	}

	manifestInvalidIssue = &Issue{
		id: ManifestInvalidID,
		mdMsg: `
# The native project manifest is unusable

nativeship reads the crate's library name from Cargo.toml to know which file
the build produces. The manifest is missing, malformed or lacks a name.

## Things you can try
- Make sure ` + "`[lib]`" + ` declares ` + "`crate-type = [\"cdylib\"]`" + ` and a name.
- Set ` + "`native.manifest`" + ` in nativeship.cue to the right path.`,
		extLinks: []HTTPLink{"https://pyo3.rs/latest/getting-started"},
	}

	buildFailedIssue = &Issue{
		id: BuildFailedID,
		mdMsg: `
# Build failed

The native build tool exited with a non-zero status. Nothing was deployed;
the previously installed module (if any) was left untouched.

## Things you can try
- Re-run with ` + "`--verbose`" + ` to see the derived linker flags.
- Build by hand with the same flags:
~~~
$ nativeship env
$ cargo build --release --manifest-path src/rust_data_collector/Cargo.toml
~~~`,
	}

	relocationFailedIssue = &Issue{
		id: RelocationFailedID,
		mdMsg: `
# The module could not be deployed

The build succeeded but its output could not be copied into the interpreter's
site-packages directory, or the copy did not match the build output.

## Things you can try
- Check write permissions on the site-packages directory.
- Make sure no other process is installing into the same environment.`,
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedID,
		mdMsg: `
# Configuration could not be loaded

nativeship.cue did not validate against the configuration schema.

## Things you can try
- Print the effective configuration:
~~~
$ nativeship config show
~~~`,
	}

	issues = map[ID]*Issue{
		descriptorNotFoundIssue.ID():  descriptorNotFoundIssue,
		activationFailedIssue.ID():    activationFailedIssue,
		introspectionFailedIssue.ID(): introspectionFailedIssue,
		manifestInvalidIssue.ID():     manifestInvalidIssue,
		buildFailedIssue.ID():         buildFailedIssue,
		relocationFailedIssue.ID():    relocationFailedIssue,
		configLoadFailedIssue.ID():    configLoadFailedIssue,
	}
)

// ID returns the guide identifier.
func (i *Issue) ID() ID {
	return i.id
}

// MarkdownMsg returns the raw Markdown of the guide.
func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

// ExtLinks returns external references for the guide.
func (i *Issue) ExtLinks() []HTTPLink {
	return slices.Clone(i.extLinks)
}

// Render renders the guide with the given glamour style ("auto", "dark",
// "notty", or a path to a JSON style file).
func (i *Issue) Render(stylePath string) (string, error) {
	extraMd := ""
	if len(i.extLinks) > 0 {
		extraMd += "\n\n## See also\n"
		for _, link := range i.extLinks {
			extraMd += "- " + string(link) + "\n"
		}
	}
	return render(string(i.mdMsg)+extraMd, stylePath)
}

// Values returns every known guide ordered by ID.
func Values() []*Issue {
	out := make([]*Issue, 0, len(issues))
	for _, i := range issues {
		out = append(out, i)
	}
	slices.SortFunc(out, func(a, b *Issue) int { return int(a.id) - int(b.id) })
	return out
}

// Get returns the guide for id, or nil when unknown.
func Get(id ID) *Issue {
	return issues[id]
}
