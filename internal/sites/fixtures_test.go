package sites

const homesCurrent = `<html><head><title>66 Pacific Road, North New Brighton | homes.co.nz</title></head><body>
<div class="hestimate">
  <span data-testid="price-estimate-lower">$1.05M</span>
  <span data-testid="price-estimate-main">$1.15M</span>
  <span data-testid="price-estimate-upper">$1.25M</span>
</div></body></html>`

const homesAngular = `<html><body><div id="mat-tab-content-0-0"><div><div></div><div><div>
<homes-hestimate-tab>
  <div><homes-price-tag-simple><div><span>HomesEstimate</span><span>$1.15M</span></div></homes-price-tag-simple></div>
  <div><div>
    <homes-price-tag-simple><div><span>Lower</span><span>$1.05M</span></div></homes-price-tag-simple>
    <homes-price-tag-simple><div><span>Upper</span><span>$1.25M</span></div></homes-price-tag-simple>
  </div></div>
</homes-hestimate-tab>
</div></div></div></div></body></html>`

const homesRange = `<html><body><p data-testid="price-estimate-range">$750,000 - $820,000</p></body></html>`

const homesLabelledRange = `<html><body><p data-testid="price-estimate-range">HomesEstimate $750,000 - $820,000</p></body></html>`

const homesTextOnly = `<html><body><section><h2>HomesEstimate</h2><p>Estimate: $985K. Updated 2 days ago.</p></section></body></html>`

const qvCurrent = `<html><body><div id="content">
  <div data-testid="qv-price">QV: $1,500,000</div>
  <div data-testid="qv-price-lower">$1,400,000</div>
  <div data-testid="qv-price-upper">$1,600,000</div>
</div></body></html>`

const qvLegacy = `<html><body><div class="qv-valuation">$1,500,000</div></body></html>`

const qvRange = `<html><body><div data-testid="qv-price-range">$750,000 - $820,000</div></body></html>`

const pvTestID = `<html><body>
  <div testid="lowEstimate">$1.2M</div>
  <div testid="highEstimate">$1.4M</div>
</body></html>`

const pvOverview = `<html><body><div id="PropertyOverview"><div>
  <div></div>
  <div>
    <div></div><div></div><div></div>
    <div><div><div></div><div><div></div><div>
      <div>$910,000</div>
      <div>$1,010,000</div>
    </div></div></div></div>
  </div>
</div></div></body></html>`

const pvRange = `<html><body><div data-testid="pv-range">$750,000 - $820,000</div></body></html>`

const realEstateCurrent = `<html><body>
<div data-test="reinz-valuation__price-range">
  <div><span>Low</span><h4>$1.02M</h4></div>
  <div><span>Estimate</span><h4>$1.10M</h4></div>
  <div><span>High</span><h4>$1.18M</h4></div>
</div></body></html>`

const realEstateRange = `<html><body><p data-testid="reinz-price-range">$750,000 - $820,000</p></body></html>`

const realEstateNotFound = `<html><body><div data-test="not-found-page"><h1>Oops</h1></div></body></html>`

const oneRoofClasses = `<html><body><div class="relative">
  <div class="text-3xl font-bold text-secondary -mt-60 pb-22">$1.3M</div>
  <div class="text-center font-medium absolute top-0 pt-10 left-0"><div class="text-base md:text-xl">$1.2M</div></div>
  <div class="text-center font-medium absolute top-0 pt-10 right-0"><div class="text-base md:text-xl">$1.4M</div></div>
</div></body></html>`

const oneRoofRange = `<html><body><div data-testid="estimate-range">$750k–$820k</div></body></html>`

const oneRoofLabelledRange = `<html><body><div data-testid="estimate-range">Estimated value $750k–$820k</div></body></html>`

// oneRoofTextRange has no known range node, only body copy
const oneRoofTextRange = `<html><body><section><h2>Estimated value $750k – $820k</h2><p>Updated weekly</p></section></body></html>`

const notFoundPage = `<html><head><title>Page not found</title></head><body><h1>Sorry</h1></body></html>`

const emptyPage = `<html><head><title>21 Onslow Road</title></head><body><h1>21 Onslow Road</h1><p>No estimate is available for this property.</p></body></html>`

const disorderedPage = `<html><body>
  <span data-testid="price-estimate-lower">$1.5M</span>
  <span data-testid="price-estimate-main">$1.15M</span>
  <span data-testid="price-estimate-upper">$1.25M</span>
</body></html>`
