package narrative

// Category selects a template bank. An image tagged "mystery" starts a
// mystery story; everything else is an adventure.
type Category string

// Phase is the position of a segment within a story.
type Phase string

const (
	CategoryAdventure Category = "adventure"
	CategoryMystery   Category = "mystery"

	PhaseStart  Phase = "start"
	PhaseMiddle Phase = "middle"
	PhaseEnd    Phase = "end"
)

// imageDescPlaceholder is replaced with the image description when a
// template is rendered.
const imageDescPlaceholder = "[IMAGE_DESC]"

// storyTemplates holds the fixed template banks for the offline story mode.
var storyTemplates = map[Category]map[Phase][]string{
	CategoryAdventure: {
		PhaseStart: {
			"The sun had just begun to peel back the golden shadows of the [IMAGE_DESC], casting long, dancing silhouettes across the untamed wilderness. It felt like the world was waiting for someone to take the first step towards a forgotten destiny.",
			"Nature seemed to hold its breath as we approached the [IMAGE_DESC]. There was an electric hum in the air, a whisper of ancient spirits that had long guarded this path, now inviting us to join their eternal dance.",
			"Standing resolute before the [IMAGE_DESC], the sheer scale of the journey ahead began to sink in. The wind carried the scent of distant rain and the promise of a hardship that would eventually lead to glory.",
		},
		PhaseMiddle: {
			"Pressing further into the unknown, our path was suddenly intersected by a [IMAGE_DESC]. It served as a stark reminder that we were not the first to wander these lands, and certainly not the last to be tested by them.",
			"The atmosphere shifted as we reached the [IMAGE_DESC]. Here, the light played tricks on the eyes, making every rustle of the leaves sound like a following footstep, urging us to move faster and with more purpose.",
			"Just when exhaustion threatened to stall our progress, the discovery of a [IMAGE_DESC] renewed our spirits. It was a beacon of hope in a landscape that had become increasingly unforgiving and strange.",
		},
		PhaseEnd: {
			"Finally, the horizon opened up to reveal the magnificent [IMAGE_DESC]. Standing there, bathed in the soft glow of the setting sun, we realized that the treasures we sought were nothing compared to the clarity we had gained.",
			"With the [IMAGE_DESC] serving as a silent witness to our triumph, the weight of the mystery finally lifted. The journey had carved its mark into our souls, leaving us forever changed by what we had witnessed.",
			"The legacy of our struggle was forever etched into the heart of the [IMAGE_DESC]. As the stars began to emerge, we knew that this story would be whispered in these halls for generations to come.",
		},
	},
	CategoryMystery: {
		PhaseStart: {
			"A heavy, suffocating fog rolled in from the [IMAGE_DESC], obscuring the truth and chilling us to the bone. Every shadow seemed to harbor a secret, and every sound was a potential warning.",
			"The silence surrounding the [IMAGE_DESC] was unnerving, a heavy blanket of secrets that refused to be disturbed. It was clear that some things were meant to stay hidden, forgotten by the passage of time.",
			"The first clue was found resting precariously against the [IMAGE_DESC], its surface worn smooth by years of neglect. It felt like a trap, yet we had no choice but to follow the breadcrumbs deeper into the dark.",
		},
		PhaseMiddle: {
			"The plot thickened as we stumbled upon the [IMAGE_DESC]. Its presence here made no sense, raising more questions than it answered and making us doubt everyone we had encountered so far.",
			"A cryptic message, scrawled in a frantic hand, led us directly to the [IMAGE_DESC]. The air here was thick with the scent of ozone and old paper, as if the very walls were vibrating with unspoken history.",
			"Shadows lurked in every corner of the [IMAGE_DESC], making it impossible to distinguish between a friend and a foe. The stakes were rising, and the time for hesitation had long since passed.",
		},
		PhaseEnd: {
			"The final puzzle piece clicked into place as we stood before the [IMAGE_DESC]. The revelation was as shocking as it was inevitable, exposing a web of deceit that spanned back decades.",
			"Standing amidst the eerie stillness of the [IMAGE_DESC], the truth finally emerged from the shadows. It wasn't the ending we had expected, but it was the one we deserved for digging where we weren't wanted.",
			"As the first light of dawn broke over the [IMAGE_DESC], the nightmare finally ended. The secrets were laid bare, but the scars left behind would serve as a permanent reminder of the price of curiosity.",
		},
	},
}

// Image is one entry in the fixed legacy gallery.
type Image struct {
	ID   int      `json:"id"`
	URL  string   `json:"url"`
	Desc string   `json:"desc"`
	Tags []string `json:"tags"`
	Alt  string   `json:"alt"`
}

var galleryImages = []Image{
	{ID: 1, URL: "https://images.unsplash.com/photo-1506744038136-46273834b3fb?w=800&h=600&fit=crop", Desc: "rugged mountain peaks", Tags: []string{"landscape", "adventure"}, Alt: "Mountain landscape"},
	{ID: 2, URL: "https://images.unsplash.com/photo-1501785888041-af3ef285b470?w=800&h=600&fit=crop", Desc: "serene lakeside at dawn", Tags: []string{"landscape", "adventure", "mystery"}, Alt: "Lake at dawn"},
	{ID: 3, URL: "https://images.unsplash.com/photo-1441974231531-c6227db76b6e?w=800&h=600&fit=crop", Desc: "ancient forest canopy", Tags: []string{"landscape", "nature"}, Alt: "Forest"},
	{ID: 4, URL: "https://images.unsplash.com/photo-1533154683836-84ea7a0bc310?w=800&h=600&fit=crop", Desc: "mysterious old key", Tags: []string{"object", "mystery"}, Alt: "Old key"},
	{ID: 5, URL: "https://images.unsplash.com/photo-1518709268805-4e9042af9f23?w=800&h=600&fit=crop", Desc: "glowing medieval lantern", Tags: []string{"object", "mystery", "adventure"}, Alt: "Lantern"},
	{ID: 6, URL: "https://images.unsplash.com/photo-1542273917363-3b1817f69a2d?w=800&h=600&fit=crop", Desc: "misty path through trees", Tags: []string{"landscape", "mystery"}, Alt: "Misty path"},
	{ID: 7, URL: "https://images.unsplash.com/photo-1514539079130-25950c84af65?w=800&h=600&fit=crop", Desc: "shimmering castle silhouette", Tags: []string{"building", "adventure"}, Alt: "Castle"},
	{ID: 8, URL: "https://images.unsplash.com/photo-1500530855697-b586d89ba3ee?w=800&h=600&fit=crop", Desc: "rusty vintage compass", Tags: []string{"object", "adventure"}, Alt: "Compass"},
	{ID: 9, URL: "https://images.unsplash.com/photo-1473448912268-2022ce9509d8?w=800&h=600&fit=crop", Desc: "dense woodland trail", Tags: []string{"landscape", "adventure"}, Alt: "Woodland trail"},
	{ID: 10, URL: "https://images.unsplash.com/photo-1544640808-32ca72ac7f37?w=800&h=600&fit=crop", Desc: "antique leather-bound book", Tags: []string{"object", "mystery"}, Alt: "Old book"},
	{ID: 11, URL: "https://images.unsplash.com/photo-1534067783941-51c9c23ecefd?w=800&h=600&fit=crop", Desc: "vibrant rainbow over hills", Tags: []string{"landscape", "adventure"}, Alt: "Rainbow over hills"},
	{ID: 12, URL: "https://images.unsplash.com/photo-1505740420928-5e560c06d30e?w=800&h=600&fit=crop", Desc: "silver pair of headphones", Tags: []string{"object", "modern"}, Alt: "Headphones"},
}

// Gallery returns the fixed image set for the offline story mode.
func Gallery() []Image {
	return galleryImages
}
