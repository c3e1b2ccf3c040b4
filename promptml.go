// Package promptml parses promptml markup into typed fragments and renders
// fragment sequences back to text.
//
// A promptml source mixes literal text with bracketed control placeholders
// that may carry a set of options:
//
//	Hello [name|greeting,formal]!
//
// # Grammar
//
// At each position the parser tries three alternatives in order:
//
//	\\  \[  \]           escapes for a literal backslash or bracket
//	[name]               control block without options
//	[name|opt1,opt2#o3]  control block with options; runs of ',' and '#' separate
//	anything else        literal text up to the next '\', '[' or ']'
//
// Adjacent plain pieces fold into one text fragment. Control fragments never
// merge with their neighbours. Options are deduplicated and kept sorted.
//
// # Basic Usage
//
//	fragments, err := promptml.Parse("[cls]A [mask] news: [text|limit][sep]")
//	for _, f := range fragments {
//	    if f.IsControl() {
//	        fmt.Println(f.Text, f.Options())
//	    }
//	}
//
// Templates wrap a fragment sequence:
//
//	tmpl := promptml.MustNewTemplate(`Say \[hi\] to [name]`)
//	tmpl.String() // Say [hi] to [name]     (display form)
//	tmpl.Source() // Say \[hi\] to [name]   (persisted form, re-parses to tmpl)
//
// # Error Handling
//
// Parsing stops at the first position where no alternative matches and
// returns what it has parsed so far without an error:
//
//	fragments, _ := promptml.Parse("abc[unclosed") // [Text("abc")]
//
// Use a strict parser to get a syntax error carrying the stop offset:
//
//	p := promptml.NewParser(promptml.WithStrict(true))
//	_, err := p.Parse("abc[unclosed") // err has offset, line and column metadata
//
// # Storage
//
// Templates persist as their source string. A Library joins a storage
// backend (memory, filesystem or postgres) with a parser:
//
//	storage, _ := promptml.OpenStorage("filesystem", "./templates")
//	lib, _ := promptml.NewLibrary(promptml.LibraryConfig{Storage: storage})
//	_, _ = lib.Save(ctx, "greeting", tmpl)
//	restored, _ := lib.Load(ctx, "greeting")
package promptml
