package model

// Movie is a single row of the `movies` table.  Every field except ID is
// nullable; a nil pointer is stored and returned as SQL NULL / JSON null.
//
// Fields:
//  ID       – primary key, assigned by the store on insert, immutable.
//  Year     – release year, stored in the year_released column.
//  Title    – movie title.
//  Director – director name.
//  Genre    – free-form genre label.
//  Likes    – like counter; 0 when absent on create.
type Movie struct {
	ID       int64   `json:"id"`       // movies.id
	Year     *int    `json:"year"`     // movies.year_released (nullable)
	Title    *string `json:"title"`    // movies.title (nullable)
	Director *string `json:"director"` // movies.director (nullable)
	Genre    *string `json:"genre"`    // movies.genre (nullable)
	Likes    *int    `json:"likes"`    // movies.likes (nullable)
}
