package sources

// Site layouts shared by several listing pages of the same outlet.

func rpp(url, category, department string) Config {
	return Config{
		Name:             "RPP Noticias",
		URL:              url,
		Base:             "https://rpp.pe",
		Category:         category,
		Department:       department,
		Container:        "article.news",
		TitleSelector:    "h2.news__title a",
		ImgSelector:      "figure.news__media img",
		AuthorSelector:   "span.news__author",
		CategorySelector: "div.news__category a",
	}
}

func laRepublica(url, category, department string) Config {
	return Config{
		Name:             "La República",
		URL:              url,
		Base:             "https://larepublica.pe",
		Category:         category,
		Department:       department,
		Container:        "div.ListSection_list__section--item__zeP_z",
		TitleSelector:    "h2.ListSection_list__section--title__hwhjX a",
		ImgSelector:      "figure img",
		AuthorSelector:   "span.AuthorSign_authorSign__name__FXLMu",
		DateSelector:     "time.ListSection_list__section--time__2cnSA",
		CategorySelector: "a.CardSection_section__category__q0s6z",
	}
}

// storyItem is the layout used by the El Comercio group sites.
func storyItem(name, url, base, category, department string) Config {
	return Config{
		Name:             name,
		URL:              url,
		Base:             base,
		Category:         category,
		Department:       department,
		Container:        "div.story-item",
		TitleSelector:    "h2.story-item__content-title a",
		ImgSelector:      "img.story-item__img",
		SummarySelector:  "p.story-item__subtitle",
		AuthorSelector:   "div.story-item__author-wrapper a",
		DateSelector:     "p.story-item__date",
		CategorySelector: "a.story-item__section",
	}
}

// DefaultConfigs returns the built-in source list.
func DefaultConfigs() []Config {
	configs := []Config{
		rpp("https://rpp.pe/peru", CategoryNacional, ""),
		laRepublica("https://larepublica.pe", CategoryNacional, ""),
		storyItem("Diario Correo", "https://diariocorreo.pe", "https://diariocorreo.pe", CategoryNacional, ""),
		storyItem("El Comercio", "https://elcomercio.pe", "https://elcomercio.pe", CategoryNacional, ""),
		{
			Name:             "Perú21",
			URL:              "https://peru21.pe",
			Base:             "https://peru21.pe",
			Category:         CategoryNacional,
			Container:        "article.news",
			TitleSelector:    "h2.news__title a",
			ImgSelector:      "figure.news__media img",
			AuthorSelector:   "span.news__author",
			CategorySelector: "div.news__category a",
		},

		// Puno regional tier.
		rpp("https://rpp.pe/peru/puno", CategoryRegional, "puno"),
		laRepublica("https://larepublica.pe/tag/puno", CategoryRegional, "puno"),
		storyItem("Diario Correo", "https://diariocorreo.pe/edicion/puno", "https://diariocorreo.pe", CategoryRegional, "puno"),
		{
			Name:             "Pachamama Radio",
			URL:              "https://pachamamaradio.org",
			Base:             "https://pachamamaradio.org",
			Category:         CategoryRegional,
			Department:       "puno",
			Container:        "div.td_module_flex",
			TitleSelector:    "h3.entry-title a",
			ImgSelector:      "span.entry-thumb",
			SummarySelector:  "div.td-excerpt",
			CategorySelector: "span.td-post-category a",
		},
		{
			Name:             "Diario Sin Fronteras",
			URL:              "https://diariosinfronteras.com.pe",
			Base:             "https://diariosinfronteras.com.pe",
			Category:         CategoryRegional,
			Department:       "puno",
			Container:        "div.post",
			TitleSelector:    "h3.entry-title a",
			ImgSelector:      "div.ws-thumbnail img",
			SummarySelector:  "div.post-excerpt",
			AuthorSelector:   "div.post-author-bd a",
			DateSelector:     "div.post-date-bd span",
			CategorySelector: "div.post-category a",
		},

		// International, legacy flat-anchor layout.
		{
			Name:          "BBC Mundo",
			URL:           "https://www.bbc.com/mundo",
			Base:          "https://www.bbc.com",
			Category:      CategoryInternacional,
			Selector:      "a",
			ImageSelector: "img",
		},
	}

	for _, dep := range []string{"lima", "arequipa", "cusco", "la-libertad", "piura"} {
		configs = append(configs,
			rpp("https://rpp.pe/peru/"+dep, CategoryNacional, dep),
			laRepublica("https://larepublica.pe/tag/"+dep, CategoryNacional, dep),
		)
	}
	return configs
}

// Default returns the validated built-in catalog.
func Default() *Catalog {
	c, err := NewCatalog(DefaultConfigs())
	if err != nil {
		panic("sources: invalid built-in catalog: " + err.Error())
	}
	return c
}
