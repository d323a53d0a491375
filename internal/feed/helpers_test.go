package feed_test

const rssFixture = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:media="http://search.yahoo.com/mrss/">
  <channel>
    <title>Fixture</title>
    <item>
      <title><![CDATA[First & foremost]]></title>
      <link>https://example.com/one</link>
      <description>One</description>
      <dc:creator>Jane Doe</dc:creator>
      <pubDate>Mon, 01 Jan 2024 00:00:00 GMT</pubDate>
      <category>Science</category>
      <category>Space</category>
      <media:content url="https://img.example.com/1.jpg" medium="image"/>
      <guid isPermaLink="false">one</guid>
    </item>
    <item>
      <title>Second</title>
      <link>https://example.com/two</link>
      <description>Two</description>
      <pubDate>Tue, 02 Jan 2024 00:00:00 GMT</pubDate>
    </item>
  </channel>
</rss>`

const atomFixture = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Atom Fixture</title>
  <entry>
    <title type="html">Only entry</title>
    <published>2024-01-01T00:00:00Z</published>
    <author><name>Sam</name></author>
  </entry>
</feed>`

const rdfFixture = `<?xml version="1.0"?>
<rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#" xmlns="http://purl.org/rss/1.0/">
  <channel rdf:about="https://example.com"><title>RDF</title></channel>
  <item rdf:about="https://example.com/a"><title>A</title></item>
  <item rdf:about="https://example.com/b"><title>B</title></item>
</rdf:RDF>`
