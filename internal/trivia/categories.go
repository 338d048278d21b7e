// internal/trivia/categories.go
package trivia

// Category is one Open Trivia Database category. IDs are OpenTDB's own and
// go straight into api.php's category parameter.
type Category struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

var categories = []Category{
	{9, "General Knowledge"},
	{10, "Entertainment: Books"},
	{11, "Entertainment: Film"},
	{12, "Entertainment: Music"},
	{13, "Entertainment: Musicals & Theatres"},
	{14, "Entertainment: Television"},
	{15, "Entertainment: Video Games"},
	{16, "Entertainment: Board Games"},
	{17, "Science & Nature"},
	{18, "Science: Computers"},
	{19, "Science: Mathematics"},
	{20, "Mythology"},
	{21, "Sports"},
	{22, "Geography"},
	{23, "History"},
	{24, "Politics"},
	{25, "Art"},
	{26, "Celebrities"},
	{27, "Animals"},
	{28, "Vehicles"},
	{29, "Entertainment: Comics"},
	{30, "Science: Gadgets"},
	{31, "Entertainment: Japanese Anime & Manga"},
	{32, "Entertainment: Cartoon & Animations"},
}

// Categories returns the supported category list in a caller-owned slice.
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}
