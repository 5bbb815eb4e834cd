package main

type categoryDef struct {
	name        string
	description string
}

type sellerDef struct {
	name  string
	email string
}

type productDef struct {
	name        string
	description string
	price       float64
	category    string
	images      []string
}

var categories = []categoryDef{
	{"Lighting", "Lamps, bulbs and fixtures"},
	{"Furniture", "Tables, chairs and storage"},
	{"Kitchen", "Cookware and utensils"},
	{"Outdoor", "Garden and camping gear"},
}

var sellers = []sellerDef{
	{"Ada Seller", "ada.seller@example.com"},
	{"Grace Seller", "grace.seller@example.com"},
	{"Linus Seller", "linus.seller@example.com"},
}

var products = []productDef{
	{"Brass Desk Lamp", "Adjustable arm with a warm LED bulb", 49.90, "Lighting", nil},
	{"Paper Pendant Shade", "Rice paper shade, 45cm", 24.00, "Lighting", nil},
	{"Solar Path Lights (6)", "Weatherproof stake lights", 32.50, "Outdoor", nil},
	{"Oak Side Table", "Solid oak with an oiled finish", 129.00, "Furniture", []string{"https://images.example.com/oak-table.jpg"}},
	{"Stacking Stool", "Birch plywood, stacks five high", 39.00, "Furniture", nil},
	{"Walnut Bookshelf", "Five shelves, wall anchored", 219.00, "Furniture", nil},
	{"Cast Iron Skillet", "Pre-seasoned 26cm pan", 34.99, "Kitchen", nil},
	{"Chef Knife", "20cm stainless steel blade", 59.00, "Kitchen", nil},
	{"Pour Over Kettle", "Gooseneck spout, 1L", 44.00, "Kitchen", nil},
	{"Two Person Tent", "Three season, 2.1kg", 149.00, "Outdoor", nil},
	{"Camp Chair", "Folding chair with cup holder", 27.50, "Outdoor", nil},
	{"Floor Lamp", "Linen shade on a steel tripod", 89.00, "Lighting", nil},
}

var reviewComments = map[int]string{
	3: "Does the job.",
	4: "Good quality for the price.",
	5: "Excellent, would buy again.",
}
