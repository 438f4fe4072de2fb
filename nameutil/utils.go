package nameutil

import (
	"math/rand"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var TitleCaser = cases.Title(language.English)
var LowerCaser = cases.Lower(language.English)

var Adjs []string = []string{
	"bold",
	"quiet",
	"golden",
	"crimson",
	"misty",
	"velvet",
	"wandering",
	"gentle",
	"amber",
	"restless",
	"silver",
	"hidden",
	"vivid",
	"dreamy",
	"rustic",
	"cosmic",
	"tender",
	"wild",
	"mellow",
	"radiant",
	"dusky",
	"playful",
	"serene",
	"curious",
	"faded",
	"electric",
	"hazy",
	"noble",
	"breezy",
	"stormy",
}

var Nouns []string = []string{
	"meadow",
	"harbor",
	"lantern",
	"orchard",
	"ember",
	"ripple",
	"canvas",
	"feather",
	"garden",
	"horizon",
	"willow",
	"compass",
	"summit",
	"tide",
	"thistle",
	"aurora",
	"pebble",
	"grove",
	"echo",
	"dune",
	"clover",
	"marble",
	"voyage",
	"petal",
	"quill",
	"sparrow",
	"juniper",
	"drift",
	"prism",
	"fable",
}

func RandomAdjective() string {
	pick := rand.Intn(len(Adjs))
	return Adjs[pick]
}

func RandomNounlike() string {
	pick := rand.Intn(len(Nouns))
	return Nouns[pick]
}

// SessionName builds a human-friendly default name for a fresh design
// session, e.g. "Golden Meadow".
func SessionName() string {
	return TitleCaser.String(RandomAdjective() + " " + RandomNounlike())
}
