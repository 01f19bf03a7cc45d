// Package errors provides structured, actionable error messages for vbind.
//
// Every error has a registry code (e.g. "VB001") that maps to a category,
// a short message and a longer explanation. Sentinel errors from the
// library packages are mapped onto codes by Classify, so the CLI and the
// live host report them uniformly.
//
// # Error Categories
//
//   - reactive: cycles, writes to disposed signals, effect budget
//   - reconcile: key expressions and list structure
//   - protocol: malformed frames from clients
//   - config: vbind.json problems
//   - cli: command-line usage
//
// # Usage
//
//	err := errors.New("VB402").
//	    WithLocation("vbind.json", 4, 17).
//	    WithSuggestion("Remove the trailing comma")
//
//	fmt.Println(err.Format())
//	// Output:
//	// ERROR VB402: Invalid configuration file
//	//
//	//   vbind.json:4:17
//	//
//	//     3 │   "addr": ":8080",
//	//   → 4 │   "strict": true,
//	//       │                 ^
//	//     5 │ }
//	//
//	//   Hint: Remove the trailing comma
package errors
