package pool

import "fmt"

// Ilk tags an interned string with the namespace it belongs to. The same
// bytes may be interned once per ilk without collision.
type Ilk uint8

const (
	Text Ilk = iota
	Integer
	AuxCommand
	AuxFile
	BstCommand
	BstFile
	BibFile
	FileExt
	Cite
	LowerCite
	BstFn
	BibCommand
	Macro
	ControlSeq
	FieldName

	numIlks
)

var ilkNames = [numIlks]string{
	Text:       "text",
	Integer:    "integer",
	AuxCommand: "aux-command",
	AuxFile:    "aux-file",
	BstCommand: "bst-command",
	BstFile:    "bst-file",
	BibFile:    "bib-file",
	FileExt:    "file-ext",
	Cite:       "cite",
	LowerCite:  "lc-cite",
	BstFn:      "bst-fn",
	BibCommand: "bib-command",
	Macro:      "macro",
	ControlSeq: "control-seq",
	FieldName:  "field-name",
}

func (i Ilk) String() string {
	if i < numIlks {
		return ilkNames[i]
	}
	return fmt.Sprintf("Ilk(%d)", uint8(i))
}
