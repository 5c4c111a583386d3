package synth

import (
	"blockext/internal/annotation"
	"blockext/internal/models"
)

// Info is the payload returned by the generated getInfo method.
type Info struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Blocks []Block         `json:"blocks"`
	Menus  map[string]Menu `json:"menus"`
}

// Block describes one block to the Scratch runtime.
type Block struct {
	Opcode    string              `json:"opcode"`
	BlockType string              `json:"blockType"`
	Text      string              `json:"text"`
	Arguments map[string]Argument `json:"arguments"`
}

// Argument describes one block input. Menu arguments are plain string
// inputs that name the menu supplying their values.
type Argument struct {
	Type         string `json:"type"`
	DefaultValue string `json:"defaultValue,omitempty"`
	Menu         string `json:"menu,omitempty"`
}

// Menu is a static menu. Items holds the array literal source verbatim.
type Menu struct {
	AcceptReporters bool   `json:"acceptReporters"`
	Items           string `json:"items"`
}

var argumentTypes = map[annotation.ArgType]string{
	annotation.ArgAngle:   "angle",
	annotation.ArgBoolean: "Boolean",
	annotation.ArgColor:   "color",
	annotation.ArgNumber:  "number",
	annotation.ArgString:  "string",
	annotation.ArgMatrix:  "matrix",
	annotation.ArgNote:    "note",
	annotation.ArgMenu:    "string",
}

var blockTypes = map[annotation.BlockKind]string{
	annotation.BlockBoolean:     "Boolean",
	annotation.BlockCommand:     "command",
	annotation.BlockConditional: "conditional",
	annotation.BlockEvent:       "event",
	annotation.BlockHat:         "hat",
	annotation.BlockLoop:        "loop",
	annotation.BlockReporter:    "reporter",
}

// ScratchBlockType maps a block kind to the runtime BlockType constant.
func ScratchBlockType(k annotation.BlockKind) string {
	if s, ok := blockTypes[k]; ok {
		return s
	}
	return string(k)
}

// ScratchArgumentType maps an annotation argument type to the runtime constant.
func ScratchArgumentType(t annotation.ArgType) string {
	if s, ok := argumentTypes[t]; ok {
		return s
	}
	return "string"
}

// Descriptor builds the structured getInfo payload for ext.
func Descriptor(ext *models.Extension, opts Options) *Info {
	opts = opts.withDefaults()
	info := &Info{
		ID:     opts.ExtensionID,
		Name:   opts.ExtensionName,
		Blocks: make([]Block, 0, len(ext.Blocks)),
		Menus:  make(map[string]Menu, len(ext.Menus)),
	}

	for _, b := range ext.Blocks {
		info.Blocks = append(info.Blocks, blockDescriptor(b))
	}
	for _, m := range staticMenus(ext) {
		info.Menus[m.Name] = Menu{AcceptReporters: true, Items: menuItems(m.Source)}
	}
	return info
}

func blockDescriptor(b models.BlockEntry) Block {
	block := Block{
		Opcode:    b.Opcode,
		BlockType: ScratchBlockType(b.BlockKind),
		Text:      b.Text,
		Arguments: make(map[string]Argument, len(b.Args)),
	}
	for _, a := range b.Args {
		arg := Argument{Type: ScratchArgumentType(a.Spec.Type)}
		if a.Spec.Type == annotation.ArgMenu {
			arg.Menu = a.Spec.Default
		} else {
			arg.DefaultValue = a.Spec.Default
		}
		block.Arguments[a.Name] = arg
	}
	return block
}
