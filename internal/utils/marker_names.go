package utils

// Decorative name parts for the transient marker emoji. The full name pool is
// the cartesian product of the two lists.

var markerFirstNames = []string{
	"Sneaky",
	"Silent",
	"Shadow",
	"Swift",
	"Hidden",
	"Stealthy",
	"Midnight",
	"Phantom",
}

var markerLastNames = []string{
	"Duck",
	"Quacker",
	"Waddler",
	"Mallard",
	"Drake",
	"Feather",
	"Paddler",
	"Bill",
}

// MarkerNames returns every first+last combination, used to pick a random
// name for each round's transient emoji.
func MarkerNames() []string {
	names := make([]string, 0, len(markerFirstNames)*len(markerLastNames))
	for _, first := range markerFirstNames {
		for _, last := range markerLastNames {
			names = append(names, first+last)
		}
	}
	return names
}
