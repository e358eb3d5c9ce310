// Package tools defines the Tool interface exposed to the model, the typed
// parameter set of a tool and the name keyed registry the conversation loop
// dispatches to.
package tools
