package catalog

import "github.com/tartilapp/tartil-server/internal/domain"

// seedReciters is the built-in catalog served when no enrichment source
// is configured or reachable. IDs are stable across releases; clients
// persist them in settings.
var seedReciters = []domain.Reciter{
	{
		ID:        1,
		Name:      "Mishary Rashid Alafasy",
		NameAr:    "مشاري بن راشد العفاسي",
		Tradition: domain.TraditionHafs,
		BaseURL:   "https://everyayah.com/data/Alafasy_128kbps",
	},
	{
		ID:        2,
		Name:      "Abdul Basit Abdus Samad",
		NameAr:    "عبد الباسط عبد الصمد",
		Tradition: domain.TraditionHafs,
		BaseURL:   "https://everyayah.com/data/Abdul_Basit_Murattal_192kbps",
	},
	{
		ID:        3,
		Name:      "Mahmoud Khalil Al-Husary",
		NameAr:    "محمود خليل الحصري",
		Tradition: domain.TraditionHafs,
		BaseURL:   "https://everyayah.com/data/Husary_128kbps",
	},
	{
		ID:        4,
		Name:      "Mohamed Siddiq El-Minshawi",
		NameAr:    "محمد صديق المنشاوي",
		Tradition: domain.TraditionHafs,
		BaseURL:   "https://everyayah.com/data/Minshawy_Murattal_128kbps",
	},
	{
		ID:        5,
		Name:      "Saud Al-Shuraim",
		NameAr:    "سعود الشريم",
		Tradition: domain.TraditionHafs,
		BaseURL:   "https://everyayah.com/data/Saood_ash-Shuraym_128kbps",
	},
	{
		ID:        6,
		Name:      "Abdur-Rahman As-Sudais",
		NameAr:    "عبد الرحمن السديس",
		Tradition: domain.TraditionHafs,
		BaseURL:   "https://everyayah.com/data/Abdurrahmaan_As-Sudais_192kbps",
	},
	{
		ID:        7,
		Name:      "Abdul Basit Abdus Samad (Warsh)",
		NameAr:    "عبد الباسط عبد الصمد - ورش",
		Tradition: domain.TraditionWarsh,
		BaseURL:   "https://everyayah.com/data/warsh/warsh_Abdul_Basit_128kbps",
	},
	{
		ID:        8,
		Name:      "Yassin Al-Jazairi (Warsh)",
		NameAr:    "ياسين الجزائري - ورش",
		Tradition: domain.TraditionWarsh,
		BaseURL:   "https://everyayah.com/data/warsh/warsh_yassin_al_jazaery_64kbps",
	},
}
