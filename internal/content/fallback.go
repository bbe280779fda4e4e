package content

var FallbackWords = []string{
	"Titanic", "Elephant", "Firefighter", "Swimming", "Superman", "Umbrella",
	"Surprised", "Lion King", "Jurassic Park", "Penguin", "Astronaut", "Juggling",
	"Harry Potter", "Toaster", "Grumpy", "Kangaroo", "Chef", "Dancing",
	"Star Wars", "Mermaid", "Dentist", "Skateboard", "Scared", "Spider-Man",
}

var FallbackItems = []Item{
	{Description: "Something red", Emoji: "🔴", Points: 1},
	{Description: "A smooth stone", Emoji: "🪨", Points: 1},
	{Description: "A feather", Emoji: "🪶", Points: 2},
	{Description: "A four-leaf clover", Emoji: "🍀", Points: 5},
	{Description: "Something that smells nice", Emoji: "🌸", Points: 2},
	{Description: "A pine cone", Emoji: "🌲", Points: 2},
	{Description: "A heart-shaped leaf", Emoji: "🍃", Points: 3},
	{Description: "Something older than you", Emoji: "⏳", Points: 3},
	{Description: "A bottle cap", Emoji: "🧢", Points: 1},
	{Description: "A Y-shaped stick", Emoji: "🪵", Points: 2},
}
