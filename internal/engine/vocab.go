package engine

// Fixed vocabularies for one-hot encoding. Every profile in a scoring batch
// is encoded against these tables, which guarantees identical feature vector
// dimensionality across the batch. Values outside a vocabulary encode as the
// all-zero block for that feature.

// locationVocab enumerates the location buckets used for one-hot encoding.
var locationVocab = []string{
	"nairobi", "mombasa", "kisumu", "kampala", "dar-es-salaam", "kigali",
	"lagos", "abuja", "accra", "johannesburg", "cape-town", "addis-ababa",
	"london", "manchester", "new-york", "atlanta", "houston", "toronto",
	"dubai", "diaspora-other",
}

// interestVocab is the fixed interest tag vocabulary.
var interestVocab = []string{
	"travel", "cooking", "fitness", "music", "dancing", "reading", "movies",
	"hiking", "photography", "art", "fashion", "football", "basketball",
	"volunteering", "entrepreneurship", "technology", "gaming", "faith",
	"family", "foodie", "nightlife", "nature", "writing", "languages",
	"meditation", "podcasts", "investing", "gardening", "swimming", "yoga",
}

// religionVocab enumerates recognized religion values.
var religionVocab = []string{
	"christian", "catholic", "protestant", "muslim", "hindu", "jewish",
	"spiritual", "traditional", "agnostic", "atheist", "other",
}

// ethnicityVocab enumerates recognized ethnicity/heritage values.
var ethnicityVocab = []string{
	"kikuyu", "luo", "luhya", "kalenjin", "kamba", "kisii", "meru", "maasai",
	"somali", "yoruba", "igbo", "hausa", "akan", "zulu", "xhosa", "amhara",
	"oromo", "shona", "baganda", "chaga", "sukuma", "tutsi", "hutu",
	"mixed", "other",
}

// vocabIndex builds a value -> position lookup for a vocabulary.
func vocabIndex(vocab []string) map[string]int {
	idx := make(map[string]int, len(vocab))
	for i, v := range vocab {
		idx[v] = i
	}
	return idx
}

var (
	locationIndex  = vocabIndex(locationVocab)
	interestIndex  = vocabIndex(interestVocab)
	religionIndex  = vocabIndex(religionVocab)
	ethnicityIndex = vocabIndex(ethnicityVocab)
)
