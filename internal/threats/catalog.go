package threats

// Static source data for simulated discoveries. Never mutated.

// Source is a site or record provider a threat can be attributed to.
type Source struct {
	Name string
	URL  string
	Kind string
}

const (
	KindSocialMedia   = "Social Media"
	KindProfessional  = "Professional Networking"
	KindDating        = "Dating"
	KindCommunity     = "Community"
	KindPhotoSharing  = "Photo Sharing"
	KindMessaging     = "Messaging"
	KindVideoPlatform = "Video Platform"
)

// socialSiteKinds are the site database kinds eligible for social media threats.
var socialSiteKinds = map[string]bool{
	KindSocialMedia:  true,
	KindProfessional: true,
	KindDating:       true,
	KindCommunity:    true,
}

var siteDatabase = []Source{
	{Name: "Facebook", URL: "https://www.facebook.com", Kind: KindSocialMedia},
	{Name: "Instagram", URL: "https://www.instagram.com", Kind: KindSocialMedia},
	{Name: "Twitter", URL: "https://twitter.com", Kind: KindSocialMedia},
	{Name: "TikTok", URL: "https://www.tiktok.com", Kind: KindSocialMedia},
	{Name: "Snapchat", URL: "https://www.snapchat.com", Kind: KindSocialMedia},
	{Name: "Pinterest", URL: "https://www.pinterest.com", Kind: KindSocialMedia},
	{Name: "Tumblr", URL: "https://www.tumblr.com", Kind: KindSocialMedia},
	{Name: "LinkedIn", URL: "https://www.linkedin.com", Kind: KindProfessional},
	{Name: "Xing", URL: "https://www.xing.com", Kind: KindProfessional},
	{Name: "AngelList", URL: "https://angel.co", Kind: KindProfessional},
	{Name: "Match", URL: "https://www.match.com", Kind: KindDating},
	{Name: "Tinder", URL: "https://tinder.com", Kind: KindDating},
	{Name: "Bumble", URL: "https://bumble.com", Kind: KindDating},
	{Name: "OkCupid", URL: "https://www.okcupid.com", Kind: KindDating},
	{Name: "Reddit", URL: "https://www.reddit.com", Kind: KindCommunity},
	{Name: "Nextdoor", URL: "https://nextdoor.com", Kind: KindCommunity},
	{Name: "Quora", URL: "https://www.quora.com", Kind: KindCommunity},
	{Name: "Meetup", URL: "https://www.meetup.com", Kind: KindCommunity},
	{Name: "Flickr", URL: "https://www.flickr.com", Kind: KindPhotoSharing},
	{Name: "Imgur", URL: "https://imgur.com", Kind: KindPhotoSharing},
	{Name: "Telegram", URL: "https://telegram.org", Kind: KindMessaging},
	{Name: "YouTube", URL: "https://www.youtube.com", Kind: KindVideoPlatform},
	{Name: "Vimeo", URL: "https://vimeo.com", Kind: KindVideoPlatform},
}

var backgroundCheckSites = []Source{
	{Name: "BeenVerified", URL: "https://www.beenverified.com"},
	{Name: "TruthFinder", URL: "https://www.truthfinder.com"},
	{Name: "Instant Checkmate", URL: "https://www.instantcheckmate.com"},
	{Name: "Intelius", URL: "https://www.intelius.com"},
	{Name: "PeopleLooker", URL: "https://www.peoplelooker.com"},
	{Name: "CheckPeople", URL: "https://www.checkpeople.com"},
	{Name: "GoodHire", URL: "https://www.goodhire.com"},
	{Name: "Checkr", URL: "https://checkr.com"},
}

var dataBreaches = []Source{
	{Name: "LinkedIn 2021 Scrape", URL: "https://www.linkedin.com", Kind: "2021"},
	{Name: "Facebook 2019 Leak", URL: "https://www.facebook.com", Kind: "2019"},
	{Name: "Adobe 2013 Breach", URL: "https://www.adobe.com", Kind: "2013"},
	{Name: "Yahoo 2014 Breach", URL: "https://www.yahoo.com", Kind: "2014"},
	{Name: "Equifax 2017 Breach", URL: "https://www.equifax.com", Kind: "2017"},
	{Name: "Canva 2019 Breach", URL: "https://www.canva.com", Kind: "2019"},
	{Name: "MyFitnessPal 2018 Breach", URL: "https://www.myfitnesspal.com", Kind: "2018"},
	{Name: "Dropbox 2012 Breach", URL: "https://www.dropbox.com", Kind: "2012"},
	{Name: "T-Mobile 2021 Breach", URL: "https://www.t-mobile.com", Kind: "2021"},
}

var financialSources = []Source{
	{Name: "County Property Records", URL: "https://publicrecords.netronline.com"},
	{Name: "UCC Filings Database", URL: "https://www.uccfilings.com"},
	{Name: "Bankruptcy Records (PACER)", URL: "https://pacer.uscourts.gov"},
	{Name: "Lien Records Search", URL: "https://www.liensearch.com"},
	{Name: "Business Registration Records", URL: "https://www.opencorporates.com"},
}

// socialSites filters the site database down to kinds that produce social
// media threats.
func socialSites() []Source {
	var out []Source
	for _, s := range siteDatabase {
		if socialSiteKinds[s.Kind] {
			out = append(out, s)
		}
	}
	return out
}

// streets, cities and states used for synthesized addresses.
var (
	streetNames   = []string{"Oak", "Maple", "Cedar", "Pine", "Elm", "Washington", "Lake", "Hill", "Park", "Main"}
	streetSuffix  = []string{"St", "Ave", "Rd", "Ln", "Dr", "Ct", "Blvd"}
	cityStates    = []string{"Austin, TX", "Denver, CO", "Columbus, OH", "Portland, OR", "Raleigh, NC", "Phoenix, AZ", "Tampa, FL", "Madison, WI"}
	employerNames = []string{"Acme Corp", "Globex", "Initech", "Umbrella Health", "Stark Logistics", "Wayne Financial"}
	schoolNames   = []string{"State University", "Community College", "Central High School", "Tech Institute"}
)
