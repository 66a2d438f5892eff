package geocaching

import (
	"github.com/FranksOps/gcparser/internal/extract"
)

const (
	ci  = extract.IgnoreCase
	cis = extract.IgnoreCase | extract.DotAll
)

// Cache listing rules, in page order. Links are matched without a host so
// the rules survive a change of base URL.
var cacheRules = extract.NewRuleSet(
	extract.NewRule("status", `<span id=['"]ErrorText['"][^>]*><strong>Cache Issues:</strong><ul><font[^>]*><li>This cache (has been archived|is temporarily unavailable)`, ci).Opt(),
	extract.NewRule("waypoint", `GC[A-Z0-9]+`, 0),
	extract.NewRule("name", `<span id=['"]CacheName['"]>([^<]+)</span>`, ci),
	extract.NewRule("hidden", `<span id=['"]DateHidden['"]>([0-9]+)/([0-9]+)/([0-9]+)</span>`, ci),
	extract.NewRule("owner", `<span id=['"]CacheOwner['"]>([^<]+)<br />Size: ([^<]+)<br />by <a href=['"][^'"]*/profile/\?guid=([a-z0-9-]+)&(?:amp;)?wid=([a-z0-9-]+)[^'"]*['"]>([^<]+)</a></span>`, ci),
	extract.NewRule("size", `<img[^>]*src=['"][^'"]*/icons/container/[^'"]*['"][^>]*alt=['"]Size: ([^'"]+)['"][^>]*>`, ci),
	extract.NewRule("difficulty", `<span id=['"]Difficulty['"]><img src=['"][^'"]*/images/stars/[^'"]*['"] alt=['"]([0-9.]+) out of 5['"]`, ci),
	extract.NewRule("terrain", `<span id=['"]Terrain['"]><img src=['"][^'"]*/images/stars/[^'"]*['"] alt=['"]([0-9.]+) out of 5['"]`, ci),
	extract.NewRule("latlon", `<span id=['"]LatLon['"][^>]*>([NS]) ([0-9]+)° ([0-9.]+) ([WE]) ([0-9]+)° ([0-9.]+)</span>`, ci),
	extract.NewRule("location", `<span id=['"]Location['"]>In (([^,<]+), )?([^<]+)</span>`, ci),
	extract.NewRule("short_desc", `<span id=['"]ShortDescription['"]>(.*?)</span>\s\s\s\s`, cis).Opt(),
	extract.NewRule("long_desc", `<span id=['"]LongDescription['"]>(.*?)</span>\s\s\s\s`, cis).Opt(),
	extract.NewRule("hint", `<span id=['"]Hints['"][^>]*>(.*)</span>`, ci).Opt(),
	extract.NewRule("attributes", `<b>Attributes</b><br/><table.*?</table>([^<]+)`, ci).Opt(),
	extract.NewRule("inventory", `<img src=['"][^'"]*/images/WptTypes/sm/tb_coin\.gif['"][^>]*>[^<]*<b>Inventory</b>.*?<table[^>]*>(.*?)<tr>[^<]*<td[^>]*>[^<]*<a[^>]*>See the history</a>`, cis).Opt(),
	extract.NewRule("visits", `<span id="lblFindCounts"[^>]*><table[^>]*>(.*?)</table></span>`, ci).Opt(),
)

var (
	inventoryItem = extract.NewRule("trackable", `<a href=['"][^'"]*/track/details\.aspx\?guid=([a-z0-9-]+)['"]>([^<]+)</a>`, ci)
	visitItem     = extract.NewRule("visit", `<img[^>]*alt="([^"]+)"[^>]*/>([0-9]+)`, ci)
)

// Find log table on /my/logs.aspx. One row per line:
//
//	<td ...><img src='../images/icons/icon_smile.gif' ... alt='Found it'></td>
//	<td ...>9/2/2009</td>
//	<td ...><a href="/seek/cache_details.aspx?guid=...">Name</a>&nbsp;</td>
//	<td ...>Region &nbsp;</td>
//	<td ...>[<a href='/seek/log.aspx?LUID=...' target=_blank>visit log</a>]</td>
var (
	findStart = extract.NewRule("log_type", `<td[^>]*><img[^>]*(Found it|Webcam Photo Taken|Attended)[^>]*></td>`, ci)

	findRows = extract.RowSpec{
		Name:  "myfinds",
		Start: findStart,
		Fields: []extract.Rule{
			extract.NewRule("date", `<td[^>]*>([0-9]+)/([0-9]+)/([0-9]+)</td>`, ci),
			extract.NewRule("cache", `<td[^>]*><a href=['"][^'"]*/seek/cache_details\.aspx\?guid=([a-z0-9-]+)['"][^>]*>(<font color="red">)?(<strike>)?([^<]+)(</strike>)?[^<]*(</font>)?[^<]*</a>[^<]*</td>`, ci),
		},
		End: extract.NewRule("log_id", `<td[^>]*>\[<a href=['"][^'"]*/seek/log\.aspx\?LUID=([a-z0-9-]+)['"][^>]*>visit log</a>\]</td>`, ci),
	}
)

// Nearest-caches results on /seek/nearest.aspx, one cell per line:
//
//	<td class="Merge"><input type="checkbox" name="CID" value="123456" /></td>
//	<td class="Merge">0.3km<br />NE</td>
//	<td class="Merge"><img src="/images/WptTypes/2.gif" alt="Traditional Cache" /></td>
//	<td class="Merge">(1.5/2)<br /><img src="/images/icons/container/small.gif" alt="Size: Small" /></td>
//	<td class="PlacedDate"><span class="small">4/17/2005</span></td>
//	<td class="Merge"><a href="/seek/cache_details.aspx?guid=..." class="lnk Strike"><span>Name</span></a></td>
//	<td class="Merge"><span class="small">by Owner | GC1ABCD | Region, Country</span></td>
//	<td class="LastFound"><span class="small">9/2/2009</span><img src="/images/icons/icon_smile.gif" alt="Found It!" /></td>
//	</tr>
var (
	searchSummary = extract.NewRuleSet(
		extract.NewRule("summary", `Total Records: <b>([0-9,]+)</b> - Page: <b>([0-9]+)</b> of <b>([0-9]+)</b>`, ci),
	)

	searchRows = extract.RowSpec{
		Name:  "seek",
		Start: extract.NewRule("cache_id", `<input type="checkbox" name="CID" value="([0-9]+)"`, ci),
		Fields: []extract.Rule{
			extract.NewRule("distance", `<td[^>]*>(Here|[0-9.,]+ ?(?:km|mi|ft|m))(?:<br />([NESW]{1,2}))?</td>`, ci).Opt(),
			extract.NewRule("type", `<img[^>]*src=['"][^'"]*/WptTypes/[^'"]*['"][^>]*alt=['"]([^'"]+)['"]`, ci),
			extract.NewRule("dt", `<td[^>]*>\(([0-9.]+)/([0-9.]+)\)(?:<br /><img[^>]*alt=['"]Size: ([^'"]+)['"][^>]*>)?`, ci),
			extract.NewRule("hidden", `<td class="PlacedDate"[^>]*><span class="small">([0-9]+)/([0-9]+)/([0-9]+)</span>`, ci).Opt(),
			extract.NewRule("cache", `<a href=['"][^'"]*/seek/cache_details\.aspx\?guid=([a-z0-9-]+)['"][^>]*class=['"]lnk( OldWarning)?( Strike)?['"][^>]*><span>([^<]+)</span></a>`, ci),
			extract.NewRule("owner", `<span class="small">by ([^|<]+) \| (GC[A-Z0-9]+) \| (?:([^,<]+), )?([^<]+)</span>`, ci),
			extract.NewRule("last_found", `<td class="LastFound"[^>]*>(?:<span class="small">([0-9]+)/([0-9]+)/([0-9]+)</span>)?(<img[^>]*alt=['"]Found It!['"])?`, ci).Opt(),
		},
		End: extract.NewRule("row_end", `</tr>`, ci),
	}
)

// Hidden field that drives the result pager to the next page.
const (
	pagerTargetField = "__EVENTTARGET"
	pagerNextTarget  = "ctl00$ContentBody$pgrTop$ctl08"
)

// Profile details form.
const (
	profileDetailsField = "ctl00$ContentBody$uxProfileDetails"
	profileSaveField    = "ctl00$ContentBody$uxSave"
	profileSaveValue    = "Save Changes"
)
